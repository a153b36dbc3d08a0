package dataset

import (
	"errors"
	"fmt"
)

// ClusterLocation names a known transmission cluster site.
type ClusterLocation string

const (
	GraceAssemblyTanglin    ClusterLocation = "Grace Assembly of God Church (Tanglin)"
	GraceAssemblyBukitBatok ClusterLocation = "Grace Assembly of God Church (Bukit Batok)"
	YongThaiHang            ClusterLocation = "Yong Thai Hang"
	LifeChurch              ClusterLocation = "The Life Church and Missions Singapore"
	GrandHyatt              ClusterLocation = "Grand Hyatt Singapore"
	SeletarAerospace        ClusterLocation = "Seletar Aerospace Heights"
)

// ErrUnknownClusterLocation is returned for names outside the known set.
var ErrUnknownClusterLocation = errors.New("unknown cluster location")

var clusterLocations = []ClusterLocation{
	GraceAssemblyTanglin,
	GraceAssemblyBukitBatok,
	YongThaiHang,
	LifeChurch,
	GrandHyatt,
	SeletarAerospace,
}

// ClusterLocations returns the known locations in display order.
func ClusterLocations() []ClusterLocation {
	out := make([]ClusterLocation, len(clusterLocations))
	copy(out, clusterLocations)
	return out
}

// ParseClusterLocation validates s against the known set.
func ParseClusterLocation(s string) (ClusterLocation, error) {
	for _, loc := range clusterLocations {
		if string(loc) == s {
			return loc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownClusterLocation, s)
}

func (c ClusterLocation) String() string {
	return string(c)
}
