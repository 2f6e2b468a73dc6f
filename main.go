package main

import (
	"fmt"

	"github.com/xmtplabs/convos-core/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
