package firmware

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"
)

// Env is the boot environment: plain name=value strings. It doubles as a
// repeatable flag.Value taking "name=value".
type Env map[string]string

func (e Env) Get(name string) string {
	return e[name]
}

// GetHex parses name as hex, with or without a 0x prefix. Unset or
// malformed values give def.
func (e Env) GetHex(name string, def uint64) uint64 {
	s, ok := e[name]
	if !ok || s == "" {
		return def
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return def
	}
	return n
}

// Put sets name. An empty value deletes it.
func (e Env) Put(name, value string) {
	if value == "" {
		delete(e, name)
	} else {
		e[name] = value
	}
}

func (e Env) Names() []string {
	names := make([]string, 0, len(e))
	for k := range e {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return sortorder.NaturalLess(names[i], names[j]) })
	return names
}

func (e Env) String() string {
	var s []string
	for _, k := range e.Names() {
		s = append(s, k+"="+e[k])
	}
	return strings.Join(s, " ")
}

// Set implements flag.Value.
func (e Env) Set(assign string) error {
	split := strings.SplitN(assign, "=", 2)
	if len(split) != 2 || split[0] == "" {
		return errors.Errorf("expected name=value, got %q", assign)
	}
	e.Put(split[0], split[1])
	return nil
}
