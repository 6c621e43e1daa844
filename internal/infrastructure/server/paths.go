package server

import "strings"

// NormalizeMountPath makes a base path absolute without a trailing slash,
// keeping bare "/" as is.
func NormalizeMountPath(basePath string) string {
	path := basePath
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "" {
		return "/"
	}
	return path
}

// JoinPath joins a mount path with an additional segment.
func JoinPath(base, segment string) string {
	basePart := strings.TrimRight(base, "/")
	segmentPart := strings.Trim(segment, "/")

	if segmentPart == "" {
		if basePart == "" {
			return "/"
		}
		return basePart
	}
	if basePart == "" || basePart == "/" {
		return "/" + segmentPart
	}
	return basePart + "/" + segmentPart
}

// NormalizeStreamablePath resolves the streamable HTTP endpoint path; a
// relative value is joined onto the mount path, an absolute one is used
// verbatim.
func NormalizeStreamablePath(path, mountPath, defaultSegment string) string {
	value := path
	if value == "" {
		value = defaultSegment
	}

	var resolved string
	if strings.HasPrefix(value, "/") {
		resolved = value
	} else {
		resolved = JoinPath(mountPath, value)
	}

	if len(resolved) > 1 {
		resolved = strings.TrimRight(resolved, "/")
	}
	if resolved == "" {
		return "/"
	}
	return resolved
}
