package platform

import "strconv"

// Fact names rendered by SystemFactSet.Facts.
const (
	FactNameMajorVersion    = "platform_major_version"
	FactNameMinorVersion    = "platform_minor_version"
	FactNameClustered       = "is_clustered"
	FactNameBackupComponent = "has_backup_component"
)

// SystemFact is one probed name/value observation about the host.
type SystemFact struct {
	Name  string
	Value string
}

// SystemFactSet holds every fact gathered by a single probe. Facts are probed
// once per run and never cached across runs.
type SystemFactSet struct {
	InstalledGeneration    Generation
	MinorVersion           int
	Clustered              bool
	BackupComponentPresent bool
}

// Facts renders the fact set as name/value pairs for logging.
func (factSet SystemFactSet) Facts() []SystemFact {
	return []SystemFact{
		{Name: FactNameMajorVersion, Value: factSet.InstalledGeneration.String()},
		{Name: FactNameMinorVersion, Value: strconv.Itoa(factSet.MinorVersion)},
		{Name: FactNameClustered, Value: strconv.FormatBool(factSet.Clustered)},
		{Name: FactNameBackupComponent, Value: strconv.FormatBool(factSet.BackupComponentPresent)},
	}
}
