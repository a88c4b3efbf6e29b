package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"evalgo.org/tsuite/models"
)

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.add(models.Resource{Name: "mds0", Kind: models.KindMDS, Host: "m1"})
	reg.add(models.Resource{Name: "c1", Kind: models.KindClient, Host: "c1"})
	reg.add(models.Resource{Name: "ion0", Kind: models.KindION, Host: "m1"})
	reg.add(models.Resource{Name: "c2", Kind: models.KindClient, Host: "c2"})
	return reg
}

func TestRegistry_Order(t *testing.T) {
	reg := testRegistry()

	assert.Equal(t, []models.Kind{models.KindMDS, models.KindClient, models.KindION}, reg.Kinds())
	assert.Equal(t, "mds:1, client:2, ion:1", reg.Summary())
	assert.Equal(t, 4, reg.Len())

	names := []string{}
	for _, res := range reg.All() {
		names = append(names, res.Name)
	}
	assert.Equal(t, []string{"mds0", "c1", "c2", "ion0"}, names)
}

func TestRegistry_Hosts(t *testing.T) {
	reg := testRegistry()
	assert.Equal(t, []string{"m1", "c1", "c2"}, reg.Hosts())
	assert.Equal(t, []string{"c1", "c2"}, reg.HostsOf(models.KindClient))
	assert.Empty(t, reg.HostsOf("tape"))
}

func TestRegistry_ByKindReturnsCopy(t *testing.T) {
	reg := testRegistry()
	clients := reg.ByKind(models.KindClient)
	clients[0].Host = "changed"
	assert.Equal(t, "c1", reg.ByKind(models.KindClient)[0].Host)
}

func TestRegistry_Empty(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Summary())
	assert.Empty(t, reg.ByKind(models.KindMDS))
}
