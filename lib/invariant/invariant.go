package invariant

import "fmt"

// Invariant panics with msg when condition does not hold. Math code uses it
// for states that can only be reached through a logic error.
func Invariant(condition bool, msg string) {
	if !condition {
		panic(fmt.Sprintf("invariant failed: %s", msg))
	}
}
