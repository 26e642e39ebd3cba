package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Avishi2511/bug-tracker/internal/domain"
)

func TestReporterVariants(t *testing.T) {
	t.Run("internal reporter carries user id", func(t *testing.T) {
		r := domain.NewInternalReporter(7)
		assert.True(t, r.IsInternal())
		require.NotNil(t, r.UserID)
		assert.Equal(t, uint(7), *r.UserID)
		assert.Empty(t, r.Name)
		assert.Empty(t, r.Email)
	})

	t.Run("public reporter trims optional fields", func(t *testing.T) {
		r := domain.NewPublicReporter("  Jane Doe ", " jane@example.com ")
		assert.False(t, r.IsInternal())
		assert.Nil(t, r.UserID)
		assert.Equal(t, "Jane Doe", r.Name)
		assert.Equal(t, "jane@example.com", r.Email)
	})

	t.Run("IsUser matches only the internal variant", func(t *testing.T) {
		internal := domain.NewInternalReporter(7)
		assert.True(t, internal.IsUser(7))
		assert.False(t, internal.IsUser(8))

		public := domain.NewPublicReporter("Jane", "")
		assert.False(t, public.IsUser(7))
	})
}

func TestBugIsAssignedTo(t *testing.T) {
	devID := uint(2)
	bug := &domain.Bug{AssignedToID: &devID}

	assert.True(t, bug.IsAssignedTo(2))
	assert.False(t, bug.IsAssignedTo(3))
	assert.False(t, (&domain.Bug{}).IsAssignedTo(2))
}

func TestValidationError_ErrOrNil(t *testing.T) {
	verr := &domain.ValidationError{}
	assert.NoError(t, verr.ErrOrNil(), "没有字段错误时必须返回无类型的 nil")

	verr.Add("title", "title is required")
	verr.Add("priority", "priority must be low, medium, high, or critical")

	err := verr.ErrOrNil()
	require.Error(t, err)
	assert.Len(t, verr.Fields, 2)
	assert.Contains(t, err.Error(), "title is required")
}

func TestValidEmailAndUsername(t *testing.T) {
	assert.True(t, domain.ValidEmail("user@example.com"))
	assert.False(t, domain.ValidEmail("user@@example"))
	assert.False(t, domain.ValidEmail("user example@x.com"))

	assert.True(t, domain.ValidUsername("dev_01"))
	assert.False(t, domain.ValidUsername("dev 01"))
	assert.False(t, domain.ValidUsername("dev-01"))
}
