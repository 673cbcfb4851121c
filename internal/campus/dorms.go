package campus

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// zijingPrefix marks the dorm complex listed ahead of every other dorm.
const zijingPrefix = "紫荆学生公寓"

// buildingNumberPatterns are tried in order; the first match wins. Ranges
// ("33-34号楼") are tried before plain numbers so they sort by their first building.
var buildingNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`紫荆学生公寓(\d+)号楼`),
	regexp.MustCompile(`(\d+)-\d+号楼`),
	regexp.MustCompile(`(\d+)号楼`),
}

// BuildingNumber extracts the building number from a dorm name, or 0.
func BuildingNumber(name string) int {
	for _, re := range buildingNumberPatterns {
		if m := re.FindStringSubmatch(name); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// OrderDorms sorts dorms in place: Zijing dorms first, then the rest, each
// group by building number. Equal numbers keep their load order.
func OrderDorms(dorms []Location) {
	sort.SliceStable(dorms, func(i, j int) bool {
		zi := strings.Contains(dorms[i].Name, zijingPrefix)
		zj := strings.Contains(dorms[j].Name, zijingPrefix)
		if zi != zj {
			return zi
		}
		return BuildingNumber(dorms[i].Name) < BuildingNumber(dorms[j].Name)
	})
}
