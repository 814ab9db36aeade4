package multierr

import "strings"

type Err []error

func (me Err) Error() string {
	var builder strings.Builder
	for _, err := range me {
		builder.WriteString("\n")
		builder.WriteString(err.Error())
	}
	return builder.String()
}

func (me Err) Len() int {
	return len(me)
}

func (me *Err) Add(err error) {
	*me = append(*me, err)
}

func (me Err) Strings() []string {
	strs := make([]string, 0, len(me))
	for _, err := range me {
		strs = append(strs, err.Error())
	}
	return strs
}

func (me Err) Unwrap() []error {
	return me
}
