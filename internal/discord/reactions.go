package discord

// scoreEmoji maps the fixed keycap reactions to the 1-5 score domain. Any
// other emoji is ignored.
var scoreEmoji = map[string]int{
	"1️⃣": 1,
	"2️⃣": 2,
	"3️⃣": 3,
	"4️⃣": 4,
	"5️⃣": 5,
}

func scoreForEmoji(name string) (int, bool) {
	score, ok := scoreEmoji[name]
	return score, ok
}
