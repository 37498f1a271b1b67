package parser

import (
	"fmt"

	"github.com/andreimatei/llvm-play/types"
)

type UnexpectedToken struct {
	Expected string
	Got      types.Token
}

func (e UnexpectedToken) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Got)
}

type UnknownType struct {
	Name string
}

func (e UnknownType) Error() string {
	return fmt.Sprintf("unknown type: %s", e.Name)
}
