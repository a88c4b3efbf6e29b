package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/tsuite/models"
)

func TestCheckSubset(t *testing.T) {
	tests := []struct {
		name      string
		necessary []string
		check     []string
		want      []string
	}{
		{"one missing", []string{"a", "b", "c"}, []string{"a", "c"}, []string{"b"}},
		{"superset", []string{"a", "b"}, []string{"c", "b", "a"}, []string{}},
		{"empty check", []string{"a", "b"}, nil, []string{"a", "b"}},
		{"nothing needed", nil, []string{"a"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckSubset(tt.necessary, tt.check))
		})
	}
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{FieldName, FieldType, FieldHost}, RequiredFields(models.KindClient))
	assert.Equal(t, []string{FieldName, FieldType, FieldHost, FieldSite, FieldID, FieldSiteID, FieldFSUUID},
		RequiredFields(models.KindMDS))
	assert.Equal(t, []string{FieldName, FieldType, FieldHost, FieldSite, FieldID, FieldSiteID},
		RequiredFields(models.KindION))
}

func TestBuilder_FinalizeClient(t *testing.T) {
	reg := NewRegistry()
	b := NewBuilder("h1", "")
	b.SetType("client")
	b.SetHost("h1")

	res, err := b.Finalize(reg)
	require.NoError(t, err)
	assert.Equal(t, models.KindClient, res.Kind)
	assert.Equal(t, 1, reg.Len())
}

func TestBuilder_FinalizeIncompleteRegistersNothing(t *testing.T) {
	reg := NewRegistry()
	b := NewBuilder("ion0", "S")
	b.SetType("archival_fs")
	b.SetHost("io1")
	b.SetID(2)

	_, err := b.Finalize(reg)
	require.Error(t, err)

	var ie *IncompleteError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, models.KindION, ie.Kind)
	assert.Equal(t, []string{FieldSiteID}, ie.Missing)
	assert.Equal(t, 0, reg.Len())
}

func TestBuilder_EmptyValuesDoNotCount(t *testing.T) {
	b := NewBuilder("r", "")
	b.SetType("")
	b.SetHost("")
	b.SetFSUUID("")
	assert.Equal(t, []string{FieldName}, b.Fields())
}

func TestBuilder_FieldsInDeclarationOrder(t *testing.T) {
	b := NewBuilder("r", "S")
	b.SetFSRoot("/x")
	b.SetHost("h")
	b.SetPool("p", "/dev/sda", "/b/p.zcf")
	assert.Equal(t, []string{FieldName, FieldSite, FieldHost, FieldPool, FieldFSRoot}, b.Fields())
}
