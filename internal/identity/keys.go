package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/pricewatch/internal/model"
)

// Category-specific similarity key patterns, applied to normalized names.
var (
	wattageRe  = regexp.MustCompile(`\b(\d{3,4})\s?w(att)?s?\b`)
	gpuModelRe = regexp.MustCompile(`\b(rtx|gtx|rx|arc)\s?(\d{3,4})\s?(ti|xt|xtx|super)?\b`)
	ramSizeRe  = regexp.MustCompile(`\b(\d{1,3})\s?gb\b`)
	ddrGenRe   = regexp.MustCompile(`\bddr(\d)\b`)
	cpuModelRe = regexp.MustCompile(`\b(i[3579]\s?\d{4,5}[a-z]{0,2}|ryzen\s?[3579]\s?\d{4}[a-z0-9]{0,3})\b`)
)

// SimilarityKey buckets near-duplicate variants within a category: PSUs by
// wattage, GPUs by model token, RAM by capacity and generation, CPUs by
// model. The diversity filter caps new items per key per discovery run.
func SimilarityKey(category model.Category, normalizedName string) string {
	switch category {
	case model.CategoryPSU:
		if m := wattageRe.FindStringSubmatch(normalizedName); m != nil {
			if w, err := strconv.Atoi(m[1]); err == nil {
				// Bucket to the nearest 100W so 850W and 860W collide.
				return fmt.Sprintf("psu:%dw", (w/100)*100)
			}
		}
	case model.CategoryGPU:
		if m := gpuModelRe.FindStringSubmatch(normalizedName); m != nil {
			return "gpu:" + m[1] + m[2] + m[3]
		}
	case model.CategoryRAM:
		size := ramSizeRe.FindStringSubmatch(normalizedName)
		gen := ddrGenRe.FindStringSubmatch(normalizedName)
		if size != nil && gen != nil {
			return "ram:" + size[1] + "gb-ddr" + gen[1]
		}
	case model.CategoryCPU:
		if m := cpuModelRe.FindStringSubmatch(normalizedName); m != nil {
			return "cpu:" + strings.ReplaceAll(m[1], " ", "")
		}
	}

	// Fallback: category plus the first two name tokens.
	tokens := strings.Fields(normalizedName)
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	return string(category) + ":" + strings.Join(tokens, "-")
}
