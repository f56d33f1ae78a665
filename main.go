package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/designdesk/designdesk/config"
	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/service"
	"github.com/designdesk/designdesk/web/storage"

	"github.com/spf13/cobra"
)

func initStores() error {
	if err := database.InitDB(config.GetDBPath()); err != nil {
		return err
	}
	return storage.InitDiskStore(config.GetMediaFolder())
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	level, err := logger.LevelFor(config.GetLogLevel())
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(level)
	defer logger.CloseLogger()

	if err := initStores(); err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := database.CloseDB(); err != nil {
			logger.Warning("close db err:", err)
		}
	}()

	server := web.NewServer()
	err = server.Start()
	if err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, os.Interrupt)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			logger.Info("reloading web server")
			err := server.Stop()
			if err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			err = server.Start()
			if err != nil {
				log.Println(err)
				return
			}
		default:
			if err := server.Stop(); err != nil {
				logger.Warning("stop server err:", err)
			}
			return
		}
	}
}

func resetSetting() {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	settingService := service.SettingService{}
	err = settingService.ResetSettings()
	if err != nil {
		fmt.Println("reset setting failed:", err)
	} else {
		fmt.Println("reset setting success")
	}
}

func showSetting() {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	settingService := service.SettingService{}
	all, err := settingService.GetAllSetting()
	if err != nil {
		fmt.Println("get current settings failed, error info:", err)
		return
	}
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Println("current settings as follows:")
	for _, key := range keys {
		fmt.Printf("%s: %s\n", key, all[key])
	}
	fmt.Println("database:", config.GetDBPath())
	fmt.Println("media:", config.GetMediaFolder())
}

func updateSetting(port int, listen string, certFile string, keyFile string, trustedProxies string) {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	settingService := service.SettingService{}

	if port > 0 {
		err := settingService.SetPort(port)
		if err != nil {
			fmt.Println("set port failed:", err)
		} else {
			fmt.Printf("set port %v success\n", port)
		}
	}
	if listen != "" {
		err := settingService.SetListen(listen)
		if err != nil {
			fmt.Println("set listen failed:", err)
		} else {
			fmt.Printf("set listen %v success\n", listen)
		}
	}
	if certFile != "" || keyFile != "" {
		err := settingService.SetCertFiles(certFile, keyFile)
		if err != nil {
			fmt.Println("set certificate failed:", err)
		} else {
			fmt.Println("set certificate success")
		}
	}
	if trustedProxies != "" {
		var proxies []string
		if trustedProxies != "none" {
			proxies = strings.Split(trustedProxies, ",")
		}
		err := settingService.SetTrustedProxies(proxies)
		if err != nil {
			fmt.Println("set trusted proxies failed:", err)
		} else {
			fmt.Printf("set trusted proxies %v success\n", proxies)
		}
	}
}

func createStaff(login, email, password, fullName string) {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	userService := service.UserService{}
	user, err := userService.CreateStaff(&entity.RegisterForm{
		Login:     login,
		Email:     email,
		Password1: password,
		Password2: password,
		FullName:  fullName,
		Consent:   "on",
	})
	if errs := service.FieldErrorsOf(err); errs != nil {
		fmt.Println("create staff failed:")
		for field, msgs := range errs {
			for _, m := range msgs {
				fmt.Printf("  %s: %s\n", field, m.Key)
			}
		}
		os.Exit(1)
	}
	if err != nil {
		fmt.Println("create staff failed:", err)
		os.Exit(1)
	}
	fmt.Printf("staff user %q created\n", user.Login)
}

func setStaff(login string, staff bool) {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	userService := service.UserService{}
	if err := userService.SetStaff(login, staff); err != nil {
		fmt.Printf("update %q failed: %v\n", login, err)
		os.Exit(1)
	}
	fmt.Printf("staff=%v set for %q\n", staff, login)
}

func main() {
	config.LoadEnv()

	var rootCmd = &cobra.Command{
		Use:   config.GetName(),
		Short: "Interior design request tracker",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.GetVersion())
		},
	}

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Set settings",
	}

	var resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Reset all settings",
		Run: func(cmd *cobra.Command, args []string) {
			resetSetting()
		},
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Run: func(cmd *cobra.Command, args []string) {
			showSetting()
		},
	}

	var updateCmd = &cobra.Command{
		Use:   "update",
		Short: "Update settings",
		Run: func(cmd *cobra.Command, args []string) {
			port, _ := cmd.Flags().GetInt("port")
			listen, _ := cmd.Flags().GetString("listen")
			certFile, _ := cmd.Flags().GetString("webCert")
			keyFile, _ := cmd.Flags().GetString("webCertKey")
			trustedProxies, _ := cmd.Flags().GetString("trustedProxies")
			updateSetting(port, listen, certFile, keyFile, trustedProxies)
		},
	}

	updateCmd.Flags().Int("port", 0, "set web port")
	updateCmd.Flags().String("listen", "", "set listen address")
	updateCmd.Flags().String("webCert", "", "set TLS certificate file")
	updateCmd.Flags().String("webCertKey", "", "set TLS key file")
	updateCmd.Flags().String("trustedProxies", "", "comma-separated reverse proxy IPs/CIDRs, or \"none\"")

	settingCmd.AddCommand(resetCmd, showCmd, updateCmd)

	var staffCmd = &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}

	var staffCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		Run: func(cmd *cobra.Command, args []string) {
			login, _ := cmd.Flags().GetString("login")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			createStaff(login, email, password, name)
		},
	}
	staffCreateCmd.Flags().String("login", "", "login")
	staffCreateCmd.Flags().String("email", "", "email")
	staffCreateCmd.Flags().String("password", "", "password")
	staffCreateCmd.Flags().String("name", "", "full name: surname, given name, optional patronymic")
	_ = staffCreateCmd.MarkFlagRequired("login")
	_ = staffCreateCmd.MarkFlagRequired("password")

	var grantCmd = &cobra.Command{
		Use:   "grant <login>",
		Short: "Make an existing user staff",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			setStaff(args[0], true)
		},
	}

	var revokeCmd = &cobra.Command{
		Use:   "revoke <login>",
		Short: "Remove the staff flag from a user",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			setStaff(args[0], false)
		},
	}

	staffCmd.AddCommand(staffCreateCmd, grantCmd, revokeCmd)

	rootCmd.AddCommand(runCmd, versionCmd, settingCmd, staffCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
