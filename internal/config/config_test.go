package config

import (
	"path/filepath"
	"testing"

	"github.com/romkeeper/romkeeper/internal/database"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetStringDefault(t *testing.T) {
	db := openTestDB(t)

	value, err := GetString(db, HashAlgorithmKey)
	if err != nil {
		t.Fatal(err)
	}
	if value != "crc" {
		t.Errorf("value = %q, want crc", value)
	}

	// the default was persisted on first read
	setting, _ := database.FindSettingByKey(db, HashAlgorithmKey)
	if setting == nil || setting.Value == nil || *setting.Value != "crc" {
		t.Errorf("setting = %+v", setting)
	}
}

func TestSetAndGet(t *testing.T) {
	db := openTestDB(t)

	if err := Set(db, HashAlgorithmKey, "sha1"); err != nil {
		t.Fatal(err)
	}
	value, _ := GetString(db, HashAlgorithmKey)
	if value != "sha1" {
		t.Errorf("value = %q", value)
	}
}

func TestGetInt(t *testing.T) {
	db := openTestDB(t)

	n, err := GetInt(db, SevenzipCompressionLevelKey)
	if err != nil || n != 9 {
		t.Errorf("n = %d, %v", n, err)
	}

	Set(db, SevenzipCompressionLevelKey, "not a number")
	if _, err := GetInt(db, SevenzipCompressionLevelKey); err == nil {
		t.Error("expected error for non-integer value")
	}
}

func TestGetBool(t *testing.T) {
	db := openTestDB(t)

	b, err := GetBool(db, SevenzipSolidCompressionKey)
	if err != nil || b {
		t.Errorf("b = %v, %v", b, err)
	}
	Set(db, SevenzipSolidCompressionKey, "true")
	if b, _ := GetBool(db, SevenzipSolidCompressionKey); !b {
		t.Error("expected true")
	}
}

func TestListOperations(t *testing.T) {
	db := openTestDB(t)

	if err := AddToList(db, RegionsOneKey, "US"); err != nil {
		t.Fatal(err)
	}
	if err := AddToList(db, RegionsOneKey, "EU"); err != nil {
		t.Fatal(err)
	}
	// adding an existing value is a no-op
	if err := AddToList(db, RegionsOneKey, "US"); err != nil {
		t.Fatal(err)
	}

	list, _ := GetList(db, RegionsOneKey)
	if len(list) != 2 || list[0] != "US" || list[1] != "EU" {
		t.Errorf("list = %v", list)
	}

	if err := RemoveFromList(db, RegionsOneKey, "US"); err != nil {
		t.Fatal(err)
	}
	list, _ = GetList(db, RegionsOneKey)
	if len(list) != 1 || list[0] != "EU" {
		t.Errorf("list = %v", list)
	}
}
