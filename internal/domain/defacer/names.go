package defacer

import (
	"path/filepath"
	"strings"
)

const (
	ExtNii   = ".nii"
	ExtNiiGz = ".nii.gz"
)

// StripNiiSuffix removes a trailing .nii.gz or .nii. Other names lose their base-name
// extension: "scan.nii.gz" -> "scan", "scan.nii" -> "scan", "dir/scan.img" -> "scan".
func StripNiiSuffix(name string) string {
	if strings.HasSuffix(name, ExtNiiGz) {
		return strings.TrimSuffix(name, ExtNiiGz)
	}
	if strings.HasSuffix(name, ExtNii) {
		return strings.TrimSuffix(name, ExtNii)
	}
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// IsNifti reports whether name carries a .nii or .nii.gz extension.
func IsNifti(name string) bool {
	return strings.HasSuffix(name, ExtNii) || strings.HasSuffix(name, ExtNiiGz)
}
