package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"空字符串", "", ""},
		{"只有空白", "  \n ", ""},
		{"纯文本", "一部科幻剧", "一部科幻剧"},
		{"段落标签", "<p>一部</p><p>科幻剧</p>", "一部科幻剧"},
		{"实体还原", "<p>A &amp; B</p>", "A & B"},
		{"脚本移除", "<script>alert(1)</script>简介", "简介"},
		{"合并空白", "<p>第一行</p>\n\n<br/>  第二行", "第一行 第二行"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkup(tt.in))
		})
	}
}
