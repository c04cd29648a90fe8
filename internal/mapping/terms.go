package mapping

// termTable is the bundled source-language to target-language dictionary
// used for translated name and keyword matching. Channel names in the
// source community are commonly Chinese; destinations are English.
var termTable = map[string]string{
	"公告": "announcements",
	"通知": "notices",
	"新闻": "news",
	"聊天": "chat",
	"闲聊": "general",
	"灌水": "offtopic",
	"活动": "events",
	"规则": "rules",
	"帮助": "help",
	"支持": "support",
	"反馈": "feedback",
	"建议": "suggestions",
	"音乐": "music",
	"游戏": "games",
	"开发": "dev",
	"技术": "tech",
	"资源": "resources",
	"招募": "recruiting",
	"欢迎": "welcome",
	"介绍": "intro",
	"直播": "stream",
	"视频": "videos",
	"图片": "pictures",
	"表情": "memes",
	"机器人": "bots",
	"管理": "admin",
	"测试": "testing",
}

// reverseTerms maps target-language terms back to source terms.
var reverseTerms = func() map[string]string {
	rev := make(map[string]string, len(termTable))
	for k, v := range termTable {
		rev[v] = k
	}
	return rev
}()

// translateToken returns the dictionary translation of a token in either
// direction, or "" when the token is not in the table.
func translateToken(tok string) string {
	if v, ok := termTable[tok]; ok {
		return v
	}
	if v, ok := reverseTerms[tok]; ok {
		return v
	}
	return ""
}
