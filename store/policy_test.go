package store

import (
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-query/internal/soql"
	"github.com/goliatone/go-record-query/query"
)

func TestFieldRefs(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"Name", []string{"Name"}},
		{"SUM(Amount)", []string{"Amount"}},
		{"COUNT ( Id )", []string{"Id"}},
		{"Owner.Name", []string{"Owner.Name"}},
		{"COALESCE(Industry, 'n/a')", []string{"Industry"}},
		{"COUNT()", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FieldRefs(tt.expr), tt.expr)
	}
}

func TestIsIdent(t *testing.T) {
	assert.True(t, IsIdent("Account"))
	assert.True(t, IsIdent("custom_field_2"))
	assert.False(t, IsIdent("2fast"))
	assert.False(t, IsIdent("SUM(Amount)"))
	assert.False(t, IsIdent(""))
}

func TestCheckAccess(t *testing.T) {
	policy := NewStaticPolicy().DenyFields("Account", "AnnualRevenue").DenyEntity("Payroll")

	st, err := soql.Parse("SELECT Id, AnnualRevenue FROM Account")
	require.NoError(t, err)

	assert.NoError(t, CheckAccess(policy, st, query.AccessSystem))
	err = CheckAccess(policy, st, query.AccessEnforcedFieldSecurity)
	require.Error(t, err)
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryAuthz))

	payroll, err := soql.Parse("SELECT Id FROM Payroll")
	require.NoError(t, err)
	assert.NoError(t, CheckAccess(policy, payroll, query.AccessEnforcedFieldSecurity))
	assert.Error(t, CheckAccess(policy, payroll, query.AccessUserMode))

	assert.NoError(t, CheckAccess(AllowAll{}, st, query.AccessUserMode))
}

func TestRows(t *testing.T) {
	records := Rows([]map[string]any{{"Id": []byte("001"), "Amount": 12.5}})
	require.Len(t, records, 1)
	assert.Equal(t, "001", records[0].ID())
	assert.Equal(t, 12.5, records[0]["Amount"])
}
