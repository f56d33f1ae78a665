package service

import (
	"fmt"

	"github.com/designdesk/designdesk/database"
	"github.com/designdesk/designdesk/database/model"
	"github.com/designdesk/designdesk/logger"
	"github.com/designdesk/designdesk/web/entity"
	"github.com/designdesk/designdesk/web/storage"

	"gorm.io/gorm"
)

type CategoryService struct{}

// CategoryStat is a category with the number of requests filed under it.
type CategoryStat struct {
	Id       int
	Name     string
	Requests int64
}

func (s *CategoryService) GetCategories() ([]model.Category, error) {
	var categories []model.Category
	err := database.GetDB().Order("name ASC").Find(&categories).Error
	return categories, err
}

func (s *CategoryService) GetCategoryStats() ([]CategoryStat, error) {
	var stats []CategoryStat
	err := database.GetDB().Model(&model.Category{}).
		Select("categories.id AS id, categories.name AS name, COUNT(design_requests.id) AS requests").
		Joins("LEFT JOIN design_requests ON design_requests.category_id = categories.id").
		Group("categories.id, categories.name").
		Order("categories.name ASC").
		Scan(&stats).Error
	return stats, err
}

func (s *CategoryService) Exists(id int) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	var count int64
	err := database.GetDB().Model(&model.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// AddCategory creates a category. Names are unique ignoring case.
func (s *CategoryService) AddCategory(form *entity.CategoryForm) (*model.Category, error) {
	errs := form.Validate()
	if !errs.Empty() {
		return nil, invalid(errs)
	}

	category := &model.Category{
		Name:    form.Name,
		NameKey: model.CategoryNameKey(form.Name),
	}
	db := database.GetDB()
	var count int64
	if err := db.Model(&model.Category{}).Where("name_key = ?", category.NameKey).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		errs.Add("name", "errors.categoryTaken")
		return nil, invalid(errs)
	}
	if err := db.Create(category).Error; err != nil {
		if database.IsDuplicate(err) {
			errs.Add("name", "errors.categoryTaken")
			return nil, invalid(errs)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

// DeleteCategory removes the category together with every request filed under
// it. Stored images of those requests are removed after the commit.
func (s *CategoryService) DeleteCategory(id int) (*model.Category, error) {
	category := &model.Category{}
	var requests []model.DesignRequest

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.First(category, id).Error; err != nil {
			if database.IsNotFound(err) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Select("id", "plan_image", "design_image").
			Where("category_id = ?", id).
			Find(&requests).Error; err != nil {
			return err
		}
		if err := tx.Where("category_id = ?", id).Delete(&model.DesignRequest{}).Error; err != nil {
			return err
		}
		return tx.Delete(category).Error
	})
	if err != nil {
		return nil, err
	}

	var keys []string
	for i := range requests {
		keys = append(keys, requests[i].Images()...)
	}
	if err := storage.GetStore().Remove(keys...); err != nil {
		logger.Warning("remove images of deleted category:", err)
	}
	logger.Infof("category %q deleted with %d requests", category.Name, len(requests))
	return category, nil
}
