package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/internal/testutil"
)

func TestDefaultsIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	admin := Admin{Email: "owner@shop.test", Password: "secret123"}

	require.NoError(t, Defaults(ctx, db, admin, zap.NewNop()))
	require.NoError(t, Defaults(ctx, db, admin, zap.NewNop()))

	var privCount, userCount int64
	require.NoError(t, db.Model(&model.Privilege{}).Count(&privCount).Error)
	require.NoError(t, db.Model(&model.User{}).Count(&userCount).Error)
	assert.Equal(t, int64(len(model.DefaultPrivileges)), privCount)
	assert.Equal(t, int64(1), userCount)

	user, err := repository.NewUserRepo(db).FindByEmail(ctx, admin.Email)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.RoleCode())
	assert.True(t, user.CheckPassword("secret123"))
	assert.True(t, user.HasPrivilege(model.PrivReportView))

	cashier, err := repository.NewRoleRepo(db).FindByCode(ctx, model.RoleCashier)
	require.NoError(t, err)
	assert.Len(t, cashier.Privileges, len(model.CashierPrivileges))
}
