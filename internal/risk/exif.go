package risk

import (
	"errors"
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/pdfscrub/internal/pdf"
)

// maxEXIFTags is the number of tags quoted in a finding detail.
const maxEXIFTags = 5

// isJPEG reports whether the stream is an image whose filter chain ends in
// DCTDecode.
func isJPEG(strm *pdf.Stream) bool {
	if sub, _ := strm.Dict.NameValue("Subtype"); sub != "Image" {
		return false
	}
	chain := strm.Filters()
	return len(chain) > 0 && chain[len(chain)-1].Name == "DCTDecode"
}

// exifDetail extracts the EXIF block of a JPEG payload. It reports false
// when the image carries no EXIF data.
func exifDetail(jpeg []byte) (detail string, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			detail, found, err = "", false, fmt.Errorf("exif parser: %v", r)
		}
	}()

	raw, err := exif.SearchAndExtractExif(jpeg)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return "", false, nil
		}
		return "", false, err
	}

	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		// A block was found even if it cannot be parsed completely.
		return "unparsable EXIF block", true, nil //nolint:nilerr // presence is what matters
	}

	tags := make([]string, 0, maxEXIFTags)
	for _, entry := range entries {
		if len(tags) == maxEXIFTags {
			break
		}
		if entry.TagName == "" {
			continue
		}
		tags = append(tags, fmt.Sprintf("%s=%s", entry.TagName, entry.Formatted))
	}
	return fmt.Sprintf("%d EXIF tags: %s", len(entries), strings.Join(tags, ", ")), true, nil
}
