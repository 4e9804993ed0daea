package banner

import "github.com/charmbracelet/lipgloss"

const art = `
  ___  ____  __  __  __    _____   __    ____
 / __)(  _ \(  \/  )(  )  (  _  ) /__\  (  _ \
( (__  )   / )    (  )(__  )(_)( /(__)\  )(_) )
 \___)(_)\_)(_/\/\_)(____)(_____)(__)(__)(____/
`

var (
	artStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	tagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// GetString returns the styled startup banner.
func GetString() string {
	return artStyle.Render(art) + "\n" + tagStyle.Render("  Synthetic load for CRM-style APIs") + "\n"
}
