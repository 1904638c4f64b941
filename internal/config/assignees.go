package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// ParseAssignees reads a login to email map written as
// "login=email,login=email". A colon may separate the pair instead of "=".
func ParseAssignees(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		i := strings.IndexAny(entry, "=:")
		if i <= 0 {
			return nil, fmt.Errorf("%w: --%s entry %q must be login=email", ErrInvalidOption, KeyAssigneesMap, entry)
		}
		out[strings.TrimSpace(entry[:i])] = strings.TrimSpace(entry[i+1:])
	}
	return out, nil
}

// assigneesValue is the pflag.Value behind --gh-assignees-map.
type assigneesValue map[string]string

func (v assigneesValue) String() string {
	logins := make([]string, 0, len(v))
	for login := range v {
		logins = append(logins, login)
	}
	sort.Strings(logins)

	pairs := make([]string, len(logins))
	for i, login := range logins {
		pairs[i] = login + "=" + v[login]
	}
	return strings.Join(pairs, ",")
}

// Set adds the entries of s; the flag may be repeated.
func (v assigneesValue) Set(s string) error {
	entries, err := ParseAssignees(s)
	if err != nil {
		return err
	}
	for login, email := range entries {
		v[login] = email
	}
	return nil
}

func (v assigneesValue) Type() string {
	return "assignees"
}

// stringToAssigneesHook decodes the string form of the assignees map, as
// read from the flag or a GHPSYNC_ variable, into a map[string]string.
func stringToAssigneesHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(map[string]string{}) {
			return data, nil
		}
		return ParseAssignees(data.(string))
	}
}

// decodeHook keeps viper's string to duration and slice conversions and
// adds the assignees map.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToAssigneesHook(),
	)
}
