package config

import "os"

func IsDebug() bool {
	return os.Getenv("LEXI_DEBUG") == "1"
}
