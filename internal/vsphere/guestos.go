package vsphere

import "strings"

// guestFamilies maps guest id prefixes to an OS family. Entries are checked
// in order and the first matching prefix wins.
var guestFamilies = []struct {
	prefix string
	family string
}{
	{"windows", "windows"},
	{"winxp", "windows"},
	{"winnet", "windows"},
	{"win", "windows"},
	{"centos", "centos"},
	{"debian", "debian"},
	{"ubuntu", "ubuntu"},
	{"suse", "suse"},
	{"sles", "suse"},
	{"rhel", "redhat"},
	{"opensuse", "opensuse"},
	{"coreos", "coreos"},
	{"fedora", "fedora"},
	{"desktop", "desktop"},
	{"freebsd", "freebsd"},
	{"arch", "arch"},
	{"oracle", "oracle"},
}

// GuestFamily classifies a vSphere guest id such as "rhel8_64Guest" into an
// OS family. Unknown ids yield "".
func GuestFamily(guestID string) string {
	id := strings.ToLower(guestID)
	for _, g := range guestFamilies {
		if strings.HasPrefix(id, g.prefix) {
			return g.family
		}
	}
	return ""
}
