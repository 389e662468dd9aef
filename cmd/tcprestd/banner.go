package main

import "github.com/fatih/color"

// Cyan, Green and friends wrap fatih/color, kept small and local to this
// binary rather than exported from the core engine (a library package
// printing ANSI color codes would leak a terminal assumption into server
// code).
func Cyan(s string) string   { return colorize(color.FgHiCyan, s) }
func Green(s string) string  { return colorize(color.FgHiGreen, s) }
func Yellow(s string) string { return colorize(color.FgHiYellow, s) }
func Red(s string) string    { return colorize(color.FgHiRed, s) }

func colorize(attr color.Attribute, s string) string {
	c := color.New(attr)
	c.EnableColor()
	return c.SprintFunc()(s)
}
