package service

import (
	"net"
	"strconv"
	"strings"

	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/util/common"
	"github.com/designdesk/designdesk/util/random"
)

var defaultValueMap = map[string]string{
	"webListen":      "",
	"webPort":        "8000",
	"webCertFile":    "",
	"webKeyFile":     "",
	"sessionMaxAge":  "1440",
	"rateLimit":      "30",
	"trustedProxies": "",
}

// SettingService reads and writes runtime settings stored in the settings table.
// Keys that were never written fall back to defaultValueMap.
type SettingService struct{}

// GetAllSetting returns every known setting with defaults applied. The session
// secret is not included.
func (s *SettingService) GetAllSetting() (map[string]string, error) {
	all := make(map[string]string, len(defaultValueMap))
	for key, value := range defaultValueMap {
		all[key] = value
	}
	var settings []model.Setting
	if err := database.GetDB().Where("key <> ?", "secret").Find(&settings).Error; err != nil {
		return nil, err
	}
	for _, setting := range settings {
		all[setting.Key] = setting.Value
	}
	return all, nil
}

func (s *SettingService) getSetting(key string) (*model.Setting, error) {
	setting := &model.Setting{}
	err := database.GetDB().Model(&model.Setting{}).Where("key = ?", key).First(setting).Error
	if err != nil {
		return nil, err
	}
	return setting, nil
}

func (s *SettingService) saveSetting(key string, value string) error {
	setting, err := s.getSetting(key)
	db := database.GetDB()
	if database.IsNotFound(err) {
		return db.Create(&model.Setting{Key: key, Value: value}).Error
	} else if err != nil {
		return err
	}
	setting.Value = value
	return db.Save(setting).Error
}

func (s *SettingService) getString(key string) (string, error) {
	setting, err := s.getSetting(key)
	if database.IsNotFound(err) {
		value, ok := defaultValueMap[key]
		if !ok {
			return "", common.NewErrorf("key <%v> not in defaultValueMap", key)
		}
		return value, nil
	} else if err != nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *SettingService) getInt(key string) (int, error) {
	str, err := s.getString(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(str)
}

func (s *SettingService) GetListen() (string, error) {
	return s.getString("webListen")
}

func (s *SettingService) SetListen(listen string) error {
	return s.saveSetting("webListen", listen)
}

func (s *SettingService) GetPort() (int, error) {
	return s.getInt("webPort")
}

func (s *SettingService) SetPort(port int) error {
	if port <= 0 || port > 65535 {
		return common.NewError("port is not a valid port:", port)
	}
	return s.saveSetting("webPort", strconv.Itoa(port))
}

func (s *SettingService) GetCertFile() (string, error) {
	return s.getString("webCertFile")
}

func (s *SettingService) GetKeyFile() (string, error) {
	return s.getString("webKeyFile")
}

func (s *SettingService) SetCertFiles(certFile, keyFile string) error {
	if err := s.saveSetting("webCertFile", certFile); err != nil {
		return err
	}
	return s.saveSetting("webKeyFile", keyFile)
}

// GetSessionMaxAge returns the session lifetime in minutes.
func (s *SettingService) GetSessionMaxAge() (int, error) {
	return s.getInt("sessionMaxAge")
}

// GetRateLimit returns the number of login/register posts allowed per client per minute.
func (s *SettingService) GetRateLimit() (int, error) {
	return s.getInt("rateLimit")
}

func (s *SettingService) SetRateLimit(requestsPerMinute int) error {
	if requestsPerMinute < 0 {
		return common.NewError("rate limit must not be negative:", requestsPerMinute)
	}
	return s.saveSetting("rateLimit", strconv.Itoa(requestsPerMinute))
}

// GetTrustedProxies returns the reverse proxies allowed to report the client
// address. Nil means the peer address is always used.
func (s *SettingService) GetTrustedProxies() ([]string, error) {
	value, err := s.getString("trustedProxies")
	if err != nil {
		return nil, err
	}
	var proxies []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies, nil
}

func (s *SettingService) SetTrustedProxies(proxies []string) error {
	for _, p := range proxies {
		if _, _, err := net.ParseCIDR(p); err == nil {
			continue
		}
		if net.ParseIP(p) == nil {
			return common.NewError("not an IP or CIDR:", p)
		}
	}
	return s.saveSetting("trustedProxies", strings.Join(proxies, ","))
}

// GetSecret returns the session signing secret, generating and persisting it on first use.
func (s *SettingService) GetSecret() ([]byte, error) {
	setting, err := s.getSetting("secret")
	if database.IsNotFound(err) {
		secret := random.Seq(32)
		if err := s.saveSetting("secret", secret); err != nil {
			return nil, err
		}
		return []byte(secret), nil
	} else if err != nil {
		return nil, err
	}
	return []byte(setting.Value), nil
}

// ResetSettings deletes every stored setting except the session secret.
func (s *SettingService) ResetSettings() error {
	return database.GetDB().Where("key <> ?", "secret").Delete(&model.Setting{}).Error
}
