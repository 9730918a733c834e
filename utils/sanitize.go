package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// 只保留文本，script/style 等元素连同内容一起移除
var stripPolicy = bluemonday.StrictPolicy()

// StripMarkup 去除简介中的 HTML 标签并还原实体，合并多余空白
func StripMarkup(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	// bluemonday 输出会转义实体，再交给 goquery 取纯文本
	cleaned := stripPolicy.Sanitize(s)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleaned))
	if err != nil {
		return strings.TrimSpace(cleaned)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
