package feed

import (
	"slices"
	"strings"

	"github.com/2003riku/static-legal-rss/pkg/domain"
)

// DefaultCategory is assigned when no keyword matches
const DefaultCategory = "一般法律"

// categories are checked in order, the first category with a matching keyword wins
var categories = []struct {
	name     string
	keywords []string
}{
	{"刑事法", []string{"刑事", "逮捕", "起訴", "判決", "裁判", "犯罪", "容疑", "検察", "警察"}},
	{"民事法", []string{"民事", "損害賠償", "契約", "不法行為", "債権", "債務", "相続", "離婚"}},
	{"企業法", []string{"企業", "会社法", "株主", "取締役", "コンプライアンス", "m&a", "株式"}},
	{"労働法", []string{"労働", "雇用", "解雇", "残業", "ハラスメント", "労災", "賃金"}},
	{"憲法", []string{"憲法", "人権", "表現の自由", "選挙", "政治", "国会", "内閣"}},
	{"行政法", []string{"行政", "許可", "認可", "規制", "官庁", "公務員", "地方自治"}},
	{"税法", []string{"税", "税務", "確定申告", "消費税", "所得税", "法人税"}},
	{"知的財産法", []string{"特許", "商標", "著作権", "知的財産", "ip", "発明"}},
	{"国際法", []string{"国際", "外国", "条約", "貿易", "外交", "海外"}},
}

// Categorize derives the category of an article from keywords in its title and content
func Categorize(title, content string) string {
	text := strings.ToLower(title + " " + content)
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				return c.name
			}
		}
	}
	return DefaultCategory
}

// Categories returns the distinct categories of articles, sorted
func Categories(articles []domain.Article) []string {
	res := []string{}
	for _, a := range articles {
		if c := Categorize(a.Title, a.Content); !slices.Contains(res, c) {
			res = append(res, c)
		}
	}
	slices.Sort(res)
	return res
}
