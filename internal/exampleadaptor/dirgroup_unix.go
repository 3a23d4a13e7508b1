//go:build unix

package exampleadaptor

import (
	"os"
	"os/user"
	"strconv"
	"syscall"
)

// dirGroup returns dir's owning Unix group name, or "" if it cannot be
// resolved (e.g. the group id has no /etc/group entry visible to this
// process).
func dirGroup(dir string) string {
	info, err := os.Stat(dir)
	if err != nil {
		return ""
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return ""
	}
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(stat.Gid), 10))
	if err != nil {
		return ""
	}
	return g.Name
}
