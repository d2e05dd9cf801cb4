//go:build !unix

package archive

import "time"

func platformMetadata(sys any) (uid, gid int, uname, gname string, atime, ctime time.Time) {
	return 0, 0, "", "", time.Time{}, time.Time{}
}
