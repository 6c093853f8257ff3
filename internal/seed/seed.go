// Package seed creates the default privileges, roles and the first
// administrator. Every step is idempotent.
package seed

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/pkg/apperror"
)

type Admin struct {
	Email    string
	Password string
}

// Defaults seeds privileges, roles with their privilege sets, and the admin
// user when missing.
func Defaults(ctx context.Context, db *gorm.DB, admin Admin, log *zap.Logger) error {
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	userRepo := repository.NewUserRepo(db)

	// 1. Seed privileges first
	if err := privilegeRepo.SeedDefaults(ctx); err != nil {
		return errors.Wrap(err, "seed privileges")
	}

	// 2. Seed roles
	if err := roleRepo.SeedDefaults(ctx); err != nil {
		return errors.Wrap(err, "seed roles")
	}

	// 3. Assign privileges to roles
	allPrivileges, err := privilegeRepo.FindAll(ctx)
	if err != nil {
		return err
	}

	adminRole, err := roleRepo.FindByCode(ctx, model.RoleAdmin)
	if err != nil {
		return err
	}
	if len(adminRole.Privileges) == 0 {
		if err := roleRepo.ReplacePrivileges(ctx, adminRole, allPrivileges); err != nil {
			return err
		}
		adminRole.Privileges = allPrivileges
		log.Info("ADMIN role assigned all privileges", zap.Int("count", len(allPrivileges)))
	}

	cashierRole, err := roleRepo.FindByCode(ctx, model.RoleCashier)
	if err != nil {
		return err
	}
	if len(cashierRole.Privileges) == 0 {
		cashierPrivileges, err := privilegeRepo.FindByCodes(ctx, model.CashierPrivileges)
		if err != nil {
			return err
		}
		if err := roleRepo.ReplacePrivileges(ctx, cashierRole, cashierPrivileges); err != nil {
			return err
		}
		log.Info("CASHIER role assigned counter privileges", zap.Int("count", len(cashierPrivileges)))
	}

	// 4. Create default admin user
	if admin.Email == "" {
		return nil
	}
	_, err = userRepo.FindByEmail(ctx, admin.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return err
	}

	user := &model.User{
		Email:      admin.Email,
		FullName:   "Administrator",
		RoleID:     &adminRole.ID,
		IsActive:   true,
		Privileges: adminRole.Privileges,
	}
	user.CreatedBy = "system"
	user.UpdatedBy = "system"
	if err := user.SetPassword(admin.Password); err != nil {
		return errors.Wrap(err, "hash admin password")
	}
	if err := userRepo.Create(ctx, user); err != nil {
		return err
	}
	log.Info("admin user created", zap.String("email", admin.Email))
	return nil
}
