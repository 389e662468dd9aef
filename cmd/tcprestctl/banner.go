package main

import "github.com/fatih/color"

func Green(s string) string { return colorize(color.FgHiGreen, s) }
func Red(s string) string   { return colorize(color.FgHiRed, s) }

func colorize(attr color.Attribute, s string) string {
	c := color.New(attr)
	c.EnableColor()
	return c.SprintFunc()(s)
}
