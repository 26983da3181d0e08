package activity

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	RolePicker  Role = "picker"
	RoleGuesser Role = "guesser"

	// MaxWrongGuesses 错满即判出题方胜
	MaxWrongGuesses = 6
)

//go:embed words.yaml
var wordsYAML []byte

// Word 词库条目
type Word struct {
	Word string `yaml:"word"`
	Hint string `yaml:"hint"`
}

// LoadWords 解析内置词库
func LoadWords() ([]Word, error) {
	return ParseWords(wordsYAML)
}

// ParseWords 解析 YAML 词库，单词统一大写且只允许 A-Z
func ParseWords(data []byte) ([]Word, error) {
	var doc struct {
		Words []Word `yaml:"words"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing word list: %w", err)
	}
	if len(doc.Words) == 0 {
		return nil, errors.New("word list is empty")
	}
	for i, w := range doc.Words {
		up := strings.ToUpper(strings.TrimSpace(w.Word))
		if up == "" || strings.IndexFunc(up, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
			return nil, fmt.Errorf("word %d (%q) must contain only letters A-Z", i, w.Word)
		}
		doc.Words[i].Word = up
	}
	return doc.Words, nil
}

// HangmanState 猜词状态。Word 只对出题方可见，直到对局结束。
type HangmanState struct {
	Word           string   `json:"word,omitempty"`
	Hint           string   `json:"hint"`
	GuessedLetters []string `json:"guessedLetters"`
	WrongLetters   []string `json:"wrongLetters"`
	WrongCount     int      `json:"wrongCount"`
	MaxWrong       int      `json:"maxWrong"`
	CurrentTurn    Role     `json:"currentTurn"`
	Winner         Role     `json:"winner,omitempty"`
	IsFinished     bool     `json:"isFinished"`
	Abandoned      bool     `json:"abandoned,omitempty"`
	RevealedWord   []string `json:"revealedWord"`
	Scores         Scores   `json:"scores"`
}

type HangmanMove struct {
	Letter string `json:"letter"`
}

type hangman struct {
	src   Source
	words []Word
}

func NewHangman(src Source, words []Word) Engine {
	return hangman{src: src, words: words}
}

func (hangman) Info() Info {
	return Info{
		Kind:        KindHangman,
		Name:        "Hangman",
		Description: "Guess the word before the drawing is complete.",
		MinPlayers:  2,
		MaxPlayers:  2,
	}
}

func (hangman) Roles() [2]Role  { return [2]Role{RolePicker, RoleGuesser} }
func (hangman) SwapRoles() bool { return true }

func (h hangman) NewState() State {
	w := h.words[h.src.Intn(len(h.words))]
	revealed := make([]string, len(w.Word))
	for i := range revealed {
		revealed[i] = "_"
	}
	return HangmanState{
		Word:           w.Word,
		Hint:           w.Hint,
		GuessedLetters: []string{},
		WrongLetters:   []string{},
		MaxWrong:       MaxWrongGuesses,
		CurrentTurn:    RoleGuesser,
		RevealedWord:   revealed,
		Scores:         NewScores(h.Roles()),
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func (hangman) Transition(s State, role Role, raw json.RawMessage) (State, error) {
	st := s.(HangmanState)
	var mv HangmanMove
	if err := decodeMove(raw, &mv); err != nil {
		return nil, err
	}
	if st.IsFinished || st.Abandoned {
		return nil, rejectf("game is over")
	}
	if st.CurrentTurn != role {
		return nil, rejectf("only the %s may guess", st.CurrentTurn)
	}
	letter := strings.ToUpper(strings.TrimSpace(mv.Letter))
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return nil, rejectf("%q is not a letter", mv.Letter)
	}
	if contains(st.GuessedLetters, letter) {
		return nil, rejectf("%s already guessed", letter)
	}

	next := st
	next.GuessedLetters = append(append([]string{}, st.GuessedLetters...), letter)
	next.WrongLetters = append([]string{}, st.WrongLetters...)
	if !strings.Contains(st.Word, letter) {
		next.WrongLetters = append(next.WrongLetters, letter)
		next.WrongCount++
	}
	next.RevealedWord = make([]string, len(st.Word))
	solved := true
	for i, ch := range st.Word {
		c := string(ch)
		if contains(next.GuessedLetters, c) {
			next.RevealedWord[i] = c
		} else {
			next.RevealedWord[i] = "_"
			solved = false
		}
	}

	switch {
	case solved:
		next.IsFinished = true
		next.Winner = RoleGuesser
		next.Scores = st.Scores.withWin(RoleGuesser)
	case next.WrongCount >= st.MaxWrong:
		next.IsFinished = true
		next.Winner = RolePicker
		next.Scores = st.Scores.withWin(RolePicker)
		for i, ch := range st.Word {
			next.RevealedWord[i] = string(ch)
		}
	}
	return next, nil
}

func (hangman) Terminal(s State) *Result {
	st := s.(HangmanState)
	if !st.IsFinished {
		return nil
	}
	return &Result{
		Winner: st.Winner,
		Details: map[string]any{
			"word":       st.Word,
			"wrongCount": st.WrongCount,
		},
	}
}

// Abandon 弃局不计胜负，但单词随即公开
func (hangman) Abandon(s State) State {
	st := s.(HangmanState)
	st.Abandoned = true
	st.RevealedWord = make([]string, len(st.Word))
	for i, ch := range st.Word {
		st.RevealedWord[i] = string(ch)
	}
	return st
}

// Project 对局进行中对猜词方隐藏单词
func (hangman) Project(s State, role Role) any {
	st := s.(HangmanState)
	if role == RoleGuesser && !st.IsFinished && !st.Abandoned {
		st.Word = ""
	}
	return st
}

func (hangman) Scores(s State) Scores { return s.(HangmanState).Scores.clone() }

func (hangman) WithScores(s State, sc Scores) State {
	st := s.(HangmanState)
	st.Scores = sc.clone()
	return st
}
