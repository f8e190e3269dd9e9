// Package config exposes typed accessors over the settings table and
// the process-wide rom/tmp directory values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/romkeeper/romkeeper/internal/database"
)

// Recognized settings keys.
const (
	RomDirectoryKey = "ROM_DIRECTORY"
	TmpDirectoryKey = "TMP_DIRECTORY"

	HashAlgorithmKey = "HASH_ALGORITHM"

	RegionsAllKey      = "REGIONS_ALL"
	RegionsOneKey      = "REGIONS_ONE"
	DiscardFlagsKey    = "DISCARD_FLAGS"
	DiscardReleasesKey = "DISCARD_RELEASES"
	LanguagesKey       = "LANGUAGES"

	PreferRegionsKey  = "PREFER_REGIONS"
	PreferVersionsKey = "PREFER_VERSIONS"
	PreferFlagsKey    = "PREFER_FLAGS"

	SubfolderSchemeKey = "SUBFOLDER_SCHEME"
	GroupSubsystemsKey = "GROUP_SUBSYSTEMS"

	SevenzipCompressionLevelKey = "SEVENZIP_COMPRESSION_LEVEL"
	SevenzipSolidCompressionKey = "SEVENZIP_SOLID_COMPRESSION"
	ZipCompressionLevelKey      = "ZIP_COMPRESSION_LEVEL"
	ChdCdHunkSizeKey            = "CHD_CD_HUNK_SIZE"
	ChdDvdHunkSizeKey           = "CHD_DVD_HUNK_SIZE"
	ChdCdCompressionKey         = "CHD_CD_COMPRESSION_ALGORITHMS"
	ChdDvdCompressionKey        = "CHD_DVD_COMPRESSION_ALGORITHMS"
	RvzCompressionLevelKey      = "RVZ_COMPRESSION_LEVEL"
	RvzCompressionAlgorithmKey  = "RVZ_COMPRESSION_ALGORITHM"
	RvzBlockSizeKey             = "RVZ_BLOCK_SIZE"
	RvzScrubKey                 = "RVZ_SCRUB"
)

// defaults are applied lazily: the first read of an unset key stores
// and returns its default.
var defaults = map[string]string{
	HashAlgorithmKey:            "crc",
	RegionsAllKey:               "",
	RegionsOneKey:               "",
	DiscardFlagsKey:             "",
	DiscardReleasesKey:          "",
	PreferRegionsKey:            "None",
	PreferVersionsKey:           "None",
	SubfolderSchemeKey:          "None",
	GroupSubsystemsKey:          "false",
	SevenzipCompressionLevelKey: "9",
	SevenzipSolidCompressionKey: "false",
	ZipCompressionLevelKey:      "9",
	RvzCompressionLevelKey:      "5",
	RvzCompressionAlgorithmKey:  "zstd",
	RvzBlockSizeKey:             "128",
	RvzScrubKey:                 "false",
}

// GetString returns the string value of a key, storing the default on
// first read when unset.
func GetString(q database.Queryer, key string) (string, error) {
	setting, err := database.FindSettingByKey(q, key)
	if err != nil {
		return "", err
	}
	if setting != nil && setting.Value != nil {
		return *setting.Value, nil
	}
	value := defaults[key]
	if setting == nil {
		if err := database.SetSetting(q, key, &value); err != nil {
			return "", err
		}
	}
	return value, nil
}

// GetBool returns the boolean value of a key.
func GetBool(q database.Queryer, key string) (bool, error) {
	value, err := GetString(q, key)
	if err != nil {
		return false, err
	}
	return value == "true" || value == "yes" || value == "1", nil
}

// GetInt returns the integer value of a key.
func GetInt(q database.Queryer, key string) (int, error) {
	value, err := GetString(q, key)
	if err != nil {
		return 0, err
	}
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not an integer: %w", key, err)
	}
	return n, nil
}

// GetList returns the comma-joined list value of a key.
func GetList(q database.Queryer, key string) ([]string, error) {
	value, err := GetString(q, key)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return nil, nil
	}
	return strings.Split(value, ","), nil
}

// Set stores a string value.
func Set(q database.Queryer, key, value string) error {
	return database.SetSetting(q, key, &value)
}

// AddToList appends value to a list setting unless already present.
func AddToList(q database.Queryer, key, value string) error {
	list, err := GetList(q, key)
	if err != nil {
		return err
	}
	for _, v := range list {
		if v == value {
			return nil
		}
	}
	list = append(list, value)
	return Set(q, key, strings.Join(list, ","))
}

// RemoveFromList removes value from a list setting.
func RemoveFromList(q database.Queryer, key, value string) error {
	list, err := GetList(q, key)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, v := range list {
		if v != value {
			kept = append(kept, v)
		}
	}
	return Set(q, key, strings.Join(kept, ","))
}

var (
	romDirOnce sync.Once
	romDir     string
	romDirErr  error
	tmpDirOnce sync.Once
	tmpDir     string
	tmpDirErr  error
)

// RomDirectory returns the configured rom directory, memoized for the
// process lifetime. The directory is created on first access.
func RomDirectory(q database.Queryer) (string, error) {
	romDirOnce.Do(func() {
		romDir, romDirErr = directory(q, RomDirectoryKey)
	})
	return romDir, romDirErr
}

// TmpDirectory returns the configured tmp directory, memoized for the
// process lifetime. Falls back to the system temp directory when unset.
func TmpDirectory(q database.Queryer) (string, error) {
	tmpDirOnce.Do(func() {
		setting, err := database.FindSettingByKey(q, TmpDirectoryKey)
		if err != nil {
			tmpDirErr = err
			return
		}
		if setting == nil || setting.Value == nil || *setting.Value == "" {
			tmpDir = os.TempDir()
			return
		}
		tmpDir, tmpDirErr = canonicalize(*setting.Value)
	})
	return tmpDir, tmpDirErr
}

func directory(q database.Queryer, key string) (string, error) {
	setting, err := database.FindSettingByKey(q, key)
	if err != nil {
		return "", err
	}
	if setting == nil || setting.Value == nil || *setting.Value == "" {
		return "", fmt.Errorf("setting %s is not configured", key)
	}
	return canonicalize(*setting.Value)
}

func canonicalize(path string) (string, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	return abs, nil
}

// SetRomDirectoryForTest overrides the memoized rom directory. Tests
// call it before any access through RomDirectory.
func SetRomDirectoryForTest(dir string) {
	romDirOnce.Do(func() {})
	romDir, romDirErr = dir, nil
}

// SetTmpDirectoryForTest overrides the memoized tmp directory.
func SetTmpDirectoryForTest(dir string) {
	tmpDirOnce.Do(func() {})
	tmpDir, tmpDirErr = dir, nil
}
