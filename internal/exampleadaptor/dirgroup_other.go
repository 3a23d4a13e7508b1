//go:build !unix

package exampleadaptor

// dirGroup is unsupported off Unix; every directory falls back to Config.DefaultGroup.
func dirGroup(dir string) string { return "" }
