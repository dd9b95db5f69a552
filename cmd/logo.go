package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

const asciiLogo = `
     _                            _
  __| | ___  __ _  __ _  ___ _ __ | |_
 / _` + "`" + ` |/ _ \/ _` + "`" + ` |/ _` + "`" + ` |/ _ \ '_ \| __|
| (_| |  __/ (_| | (_| |  __/ | | | |_
 \__,_|\___|\__,_|\__, |\___|_| |_|\__|
                  |___/`

var logoStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("99")).
	Bold(true)

// PrintLogo prints the deagent ASCII art logo.
func PrintLogo() {
	fmt.Println(logoStyle.Render(asciiLogo))
}
