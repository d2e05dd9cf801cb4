//go:build unix

package archive

import (
	"os/user"
	"strconv"
	"syscall"
	"time"
)

func platformMetadata(sys any) (uid, gid int, uname, gname string, atime, ctime time.Time) {
	st, ok := sys.(*syscall.Stat_t)
	if !ok {
		return 0, 0, "", "", time.Time{}, time.Time{}
	}

	uid = int(st.Uid)
	gid = int(st.Gid)
	atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)

	if u, err := user.LookupId(strconv.Itoa(uid)); err == nil {
		uname = u.Username
	}
	if g, err := user.LookupGroupId(strconv.Itoa(gid)); err == nil {
		gname = g.Name
	}
	return uid, gid, uname, gname, atime, ctime
}
