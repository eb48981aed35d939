package provision

import (
	"errors"
	"strings"

	"github.com/jashinspires/WorkGrid/internal/model"
	"github.com/jashinspires/WorkGrid/pkg/config"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// BootstrapSuperAdmin creates the tenant-less super_admin account from
// configuration if none exists yet. Returns true when an account was
// created. A blank email or password disables bootstrapping.
func BootstrapSuperAdmin(db *gorm.DB, cfg *config.BootstrapConfig) (bool, error) {
	if cfg.SuperAdminEmail == "" || cfg.SuperAdminPassword == "" {
		return false, nil
	}

	var existing model.User
	err := db.Where("tenant_id IS NULL AND role = ?", model.RoleSuperAdmin).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SuperAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}

	admin := model.User{
		TenantID:     nil,
		Email:        strings.ToLower(cfg.SuperAdminEmail),
		PasswordHash: string(hash),
		FullName:     cfg.SuperAdminFullName,
		Role:         model.RoleSuperAdmin,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
