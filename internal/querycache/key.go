package querycache

import "strings"

// Key — ключ запроса: вид сущности и все параметры, влияющие на результат.
// Строковая форма детерминирована: kind|p1|p2...
type Key struct {
	Kind  string
	Parts []string
}

// NewKey собирает ключ.
func NewKey(kind string, parts ...string) Key {
	return Key{Kind: kind, Parts: parts}
}

var escaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`)

// String возвращает каноническую строку ключа.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(escaper.Replace(k.Kind))
	for _, p := range k.Parts {
		b.WriteByte('|')
		b.WriteString(escaper.Replace(p))
	}

	return b.String()
}

// HasPrefix сообщает, что ключ принадлежит семейству prefix:
// тот же Kind и Parts начинаются с prefix.Parts.
func (k Key) HasPrefix(prefix Key) bool {
	if k.Kind != prefix.Kind || len(k.Parts) < len(prefix.Parts) {
		return false
	}

	for i, p := range prefix.Parts {
		if k.Parts[i] != p {
			return false
		}
	}

	return true
}
