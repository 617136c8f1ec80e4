package version

// Version is the release of the yali binaries. Release builds set it with:
//
//	go build -ldflags="-X 'github.com/cagdaskarabulut/yali-speak/internal/version.Version=v1.0.0'"
var Version = "dev"
