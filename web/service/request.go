package service

import (
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/storage"

	"gorm.io/gorm"
)

// HomeShowcaseSize is the number of completed requests shown on the home page.
const HomeShowcaseSize = 4

type RequestService struct {
	categoryService CategoryService
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

// GetUserRequests lists the requests owned by userID, newest first. A non-empty
// status filters by exact match.
func (s *RequestService) GetUserRequests(userID int, status string) ([]model.DesignRequest, error) {
	query := database.GetDB().Preload("Category").Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var requests []model.DesignRequest
	err := query.Scopes(newestFirst).Find(&requests).Error
	return requests, err
}

// GetAllRequests lists every request with owner and category, newest first.
func (s *RequestService) GetAllRequests(status string) ([]model.DesignRequest, error) {
	query := database.GetDB().Preload("Category").Preload("User")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var requests []model.DesignRequest
	err := query.Scopes(newestFirst).Find(&requests).Error
	return requests, err
}

// GetCompletedRequests returns up to limit of the most recently created completed requests.
func (s *RequestService) GetCompletedRequests(limit int) ([]model.DesignRequest, error) {
	var requests []model.DesignRequest
	err := database.GetDB().Preload("Category").
		Where("status = ?", model.StatusCompleted).
		Scopes(newestFirst).
		Limit(limit).
		Find(&requests).Error
	return requests, err
}

func (s *RequestService) CountByStatus(status model.Status) (int64, error) {
	var count int64
	err := database.GetDB().Model(&model.DesignRequest{}).Where("status = ?", status).Count(&count).Error
	return count, err
}

func (s *RequestService) GetRequest(id int) (*model.DesignRequest, error) {
	request := &model.DesignRequest{}
	err := database.GetDB().Preload("Category").Preload("User").First(request, id).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

// CreateRequest validates form and files a new request owned by userID. The
// plan image is stored first; if the insert fails it is removed again.
func (s *RequestService) CreateRequest(userID int, form *entity.DesignRequestForm) (*model.DesignRequest, error) {
	errs := form.Validate()
	if !errs.Has("category") {
		ok, err := s.categoryService.Exists(form.CategoryID())
		if err != nil {
			return nil, err
		}
		if !ok {
			errs.Add("category", "errors.categoryMissing")
		}
	}
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	key, err := saveImage(storage.PlanBucket, "plan_image", form.PlanImage)
	if err != nil {
		return nil, err
	}

	request := &model.DesignRequest{
		UserId:      userID,
		Title:       form.Title,
		Description: form.Description,
		CategoryId:  form.CategoryID(),
		PlanImage:   key,
		Status:      model.StatusNew,
	}
	if err := database.GetDB().Create(request).Error; err != nil {
		discardImage(key)
		return nil, fmt.Errorf("create design request: %w", err)
	}
	logger.Infof("design request %d created by user %d", request.Id, userID)
	return request, nil
}

// GetOwnedRequest returns the request only if it belongs to userID.
func (s *RequestService) GetOwnedRequest(id, userID int) (*model.DesignRequest, error) {
	request := &model.DesignRequest{}
	err := database.GetDB().Preload("Category").
		Where("id = ? AND user_id = ?", id, userID).
		First(request).Error
	if database.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return request, nil
}

// CheckDeletable returns the request if its owner may still delete it.
func (s *RequestService) CheckDeletable(id, userID int) (*model.DesignRequest, error) {
	request, err := s.GetOwnedRequest(id, userID)
	if err != nil {
		return nil, err
	}
	if !request.Status.IsOpen() {
		return request, ErrStatusLocked
	}
	return request, nil
}

// DeleteRequest deletes a request of userID that is still open, then its images.
func (s *RequestService) DeleteRequest(id, userID int) (*model.DesignRequest, error) {
	request, err := s.CheckDeletable(id, userID)
	if err != nil {
		return request, err
	}
	res := database.GetDB().
		Where("id = ? AND user_id = ? AND status = ?", id, userID, request.Status).
		Delete(&model.DesignRequest{})
	if res.Error != nil {
		return nil, fmt.Errorf("delete design request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Status changed (or row vanished) between the check and the delete.
		return s.CheckDeletable(id, userID)
	}
	if err := storage.GetStore().Remove(request.Images()...); err != nil {
		logger.Warning("remove images of deleted request:", err)
	}
	logger.Infof("design request %d deleted by owner %d", id, userID)
	return request, nil
}

// CheckChangeable returns the request if staff may still change its status.
func (s *RequestService) CheckChangeable(id int) (*model.DesignRequest, error) {
	request, err := s.GetRequest(id)
	if err != nil {
		return nil, err
	}
	if !request.Status.IsOpen() {
		return request, ErrStatusLocked
	}
	return request, nil
}

// ChangeStatus moves an open request to the status chosen in form, storing the
// optional design image and comment with it.
func (s *RequestService) ChangeStatus(id int, form *entity.StatusForm) (*model.DesignRequest, error) {
	request, err := s.CheckChangeable(id)
	if err != nil {
		return request, err
	}
	errs := form.Validate(request.Status)
	if !errs.Empty() {
		return request, invalid(errs)
	}

	updates := map[string]any{"status": form.Target()}
	var key string
	if form.DesignImage != nil {
		key, err = saveImage(storage.DesignBucket, "design_image", form.DesignImage)
		if err != nil {
			return request, err
		}
		updates["design_image"] = key
	}
	if form.AdminComment != "" {
		updates["admin_comment"] = form.AdminComment
	}

	res := database.GetDB().Model(&model.DesignRequest{}).
		Where("id = ? AND status = ?", id, request.Status).
		Updates(updates)
	if res.Error != nil {
		discardImage(key)
		return request, fmt.Errorf("update design request status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		discardImage(key)
		return request, ErrStatusLocked
	}

	previous := request.DesignImage
	request.Status = form.Target()
	if key != "" {
		request.DesignImage = key
		discardImage(previous)
	}
	if form.AdminComment != "" {
		request.AdminComment = form.AdminComment
	}
	logger.Infof("design request %d moved to %s", id, request.Status)
	return request, nil
}

// saveImage stores an uploaded file. A body larger than its declared size is
// reported as a field error on field.
func saveImage(bucket, field string, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	key, err := storage.GetStore().Save(bucket, header.Filename, file)
	switch {
	case errors.Is(err, storage.ErrImageTooLarge):
		errs := entity.FieldErrors{}
		errs.Add(field, "errors.imageTooLarge")
		return "", invalid(errs)
	case errors.Is(err, storage.ErrImageInvalid):
		errs := entity.FieldErrors{}
		errs.Add(field, "errors.imageInvalid")
		return "", invalid(errs)
	}
	if err != nil {
		return "", fmt.Errorf("store %s: %w", field, err)
	}
	return key, nil
}

func discardImage(key string) {
	if key == "" {
		return
	}
	if err := storage.GetStore().Remove(key); err != nil {
		logger.Warning("discard image:", err)
	}
}
