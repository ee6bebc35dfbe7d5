package core

// Difficulty is optional question metadata.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Option is one labeled answer choice, e.g. {"A", "4"}.
type Option struct {
	Label string `json:"label" bson:"label"`
	Text  string `json:"text" bson:"text"`
}

// Question is a single exam question. The cache treats it as an opaque record
// owned by the remote question source.
type Question struct {
	ID            string     `json:"id" bson:"id"`
	Subject       Subject    `json:"subject" bson:"subject"`
	Topic         string     `json:"topic" bson:"topic"`
	Text          string     `json:"question" bson:"question"`
	Options       []Option   `json:"options" bson:"options"`
	CorrectAnswer string     `json:"correct_answer" bson:"correct_answer"`
	Difficulty    Difficulty `json:"difficulty,omitempty" bson:"difficulty,omitempty"`
	Explanation   string     `json:"explanation,omitempty" bson:"explanation,omitempty"`
}
