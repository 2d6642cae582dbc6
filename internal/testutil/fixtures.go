// Package testutil holds the schema directory shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/value"
)

// Servertype ids of the fixture enum.
const (
	ServertypeDBMaster int64 = 1
	ServertypeDBSlave  int64 = 2
	ServertypeWeb      int64 = 3
)

// Attribute keys of the fixture EAV attributes.
const (
	KeyOS            int64 = 1
	KeyCores         int64 = 2
	KeyMonitored     int64 = 3
	KeyBackupIP      int64 = 4
	KeyPrimaryIP6    int64 = 5
	KeyTags          int64 = 6
	KeyPorts         int64 = 7
	KeyAdditionalIPs int64 = 8
)

// Attributes returns the fixture attribute set:
//
//	scalar: hostname, intern_ip, segment, servertype (enum), active
//	single EAV: os, cores, monitored, backup_ip, primary_ip6
//	multi EAV: tags, ports, additional_ips
func Attributes(t testing.TB) []schema.Attribute {
	t.Helper()
	servertypes, err := schema.NewEnum(map[int64]string{
		ServertypeDBMaster: "db_master",
		ServertypeDBSlave:  "db_slave",
		ServertypeWeb:      "web",
	})
	require.NoError(t, err)

	return []schema.Attribute{
		{Name: "hostname", Type: value.TypeString, Column: "hostname"},
		{Name: "intern_ip", Type: value.TypeIP, Column: "intern_ip"},
		{Name: "segment", Type: value.TypeString, Column: "segment"},
		{Name: "servertype", Type: value.TypeString, Column: "servertype_id", Enum: servertypes},
		{Name: "active", Type: value.TypeBoolean, Column: "active"},
		{Name: "os", Type: value.TypeString, Key: KeyOS},
		{Name: "cores", Type: value.TypeInteger, Key: KeyCores},
		{Name: "monitored", Type: value.TypeBoolean, Key: KeyMonitored},
		{Name: "backup_ip", Type: value.TypeIP, Key: KeyBackupIP},
		{Name: "primary_ip6", Type: value.TypeIP6, Key: KeyPrimaryIP6},
		{Name: "tags", Type: value.TypeString, Multi: true, Key: KeyTags},
		{Name: "ports", Type: value.TypeInteger, Multi: true, Key: KeyPorts},
		{Name: "additional_ips", Type: value.TypeIP, Multi: true, Key: KeyAdditionalIPs},
	}
}

// Directory builds the fixture directory.
func Directory(t testing.TB) *schema.Directory {
	t.Helper()
	d, err := schema.NewDirectory(Attributes(t))
	require.NoError(t, err)
	return d
}

// Attr looks up a fixture attribute.
func Attr(t testing.TB, d *schema.Directory, name string) *schema.Attribute {
	t.Helper()
	a, err := d.Lookup(name)
	require.NoError(t, err)
	return a
}
