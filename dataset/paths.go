package dataset

import (
	"path"
	"path/filepath"
	"strings"
)

// MelDir maps an index path such as data/splits/train.csv to the directory holding
// its spectrograms, e.g. data/padded_melspec_no_silence/train.
func MelDir(indexPath string, silence, padded bool) string {
	folder := "melspec"
	if padded {
		folder = "padded_" + folder
	}
	if !silence {
		folder += "_no_silence"
	}
	base := strings.TrimSuffix(indexPath, filepath.Ext(indexPath))
	return strings.ReplaceAll(base, "splits", folder)
}

// MelFile names the artifact for the media path in column 0 of an index row.
func MelFile(mediaPath string, silence bool) string {
	stem := path.Base(filepath.ToSlash(mediaPath))
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	if silence {
		return stem + ".pt"
	}
	return stem + "_no_silence_16k.pt"
}
