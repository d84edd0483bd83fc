package compression

import (
	"strings"
	"unicode"
)

// keywordWeights scores sentences that carry listing facts.
var keywordWeights = map[string]int{
	"物件": 3, "住所": 3, "価格": 3, "賃料": 3, "家賃": 3, "面積": 3, "間取り": 3,
	"最寄り": 2, "駅": 2, "徒歩": 2, "築": 2, "階": 2, "設備": 2,
	"敷金": 2, "礼金": 2, "管理費": 2, "共益費": 2,
	"price": 3, "rent": 3, "address": 3, "area": 3, "layout": 3,
	"station": 2, "walk": 2, "built": 2, "renovated": 2, "floor": 2,
	"deposit": 2, "parking": 1, "quiet": 1, "sunny": 1,
}

var unitMarkers = []string{"万円", "円", "㎡", "m²", "sqm", "分", "km", "階", "年", "月", "¥"}

// ScoreSentence rates how much listing information a sentence carries.
func ScoreSentence(s string) int {
	lower := strings.ToLower(s)
	score := 0
	for kw, w := range keywordWeights {
		if strings.Contains(lower, kw) {
			score += w
		}
	}
	if strings.IndexFunc(s, unicode.IsDigit) >= 0 {
		score++
	}
	for _, u := range unitMarkers {
		if strings.Contains(lower, u) {
			score += 2
			break
		}
	}
	return score
}
