package repository

import (
	"errors"

	"github.com/revflowhq/revflow/app/models"
	"gorm.io/gorm"
)

// ruleRepository implements the RuleRepository interface
type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository creates a new automation rule repository instance
func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) GetByID(id uint) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	if err := r.db.First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListEnabledByCustomer loads the evaluation set for one customer. The
// ordering here is what makes evaluation deterministic: priority descending,
// id ascending for ties.
func (r *ruleRepository) ListEnabledByCustomer(customerID uint) ([]models.AutomationRule, error) {
	var rules []models.AutomationRule
	err := r.db.Where("customer_id = ? AND enabled = ?", customerID, true).
		Order("priority DESC, id ASC").
		Find(&rules).Error
	return rules, err
}

func (r *ruleRepository) Create(rule *models.AutomationRule) error {
	return r.db.Create(rule).Error
}

func (r *ruleRepository) Update(rule *models.AutomationRule) error {
	return r.db.Save(rule).Error
}

// profileRepository implements the ProfileRepository interface
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new automation profile repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// GetByCustomer returns the customer's profile, falling back to the
// conservative default (shadow stage) when none is configured yet.
func (r *profileRepository) GetByCustomer(customerID uint) (*models.AutomationProfile, error) {
	var profile models.AutomationProfile
	err := r.db.Where("customer_id = ?", customerID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultProfile(customerID), nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Save(profile *models.AutomationProfile) error {
	return r.db.Save(profile).Error
}
