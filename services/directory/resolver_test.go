package directory

import (
	"context"
	"testing"

	"notifyhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolver(t *testing.T) {
	r := &StaticResolver{Users: []StaticUser{
		{ID: "u1", Role: "admin", CompanyID: "c1"},
		{ID: "u2", Role: "member", CompanyID: "c1"},
		{ID: "u3", Role: "member", CompanyID: "c2"},
	}}

	all, err := r.Resolve(context.Background(), models.Audience{Kind: models.AudienceAll})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, all)

	members, err := r.Resolve(context.Background(), models.Audience{Kind: models.AudienceRole, Value: "member"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u2", "u3"}, members)

	c1, err := r.Resolve(context.Background(), models.Audience{Kind: models.AudienceCompany, Value: "c1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, c1)

	_, err = r.Resolve(context.Background(), models.Audience{Kind: "everyone"})
	require.Error(t, err)
}
