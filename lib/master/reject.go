package master

// VersionNonexistent is the version reported for keys that hold no object.
// Versions of real objects start at 1.
const VersionNonexistent uint64 = 0

// RejectRules lets a client make an operation conditional on the current
// state of the object. Zero value = never reject.
type RejectRules struct {
	// GivenVersion is the version the Version* flags compare against.
	GivenVersion uint64 `json:"given_version"`
	// DoesntExist rejects with OBJECT_DOESNT_EXIST if no object exists.
	DoesntExist bool `json:"doesnt_exist"`
	// Exists rejects with OBJECT_EXISTS if an object exists.
	Exists bool `json:"exists"`
	// VersionLeGiven rejects with WRONG_VERSION if the current version is
	// less than or equal to GivenVersion.
	VersionLeGiven bool `json:"version_le_given"`
	// VersionNeGiven rejects with WRONG_VERSION if the current version
	// differs from GivenVersion.
	VersionNeGiven bool `json:"version_ne_given"`
}

// rejectOperation evaluates the rules against the current version and
// returns a typed error if any rule fires; the error carries the current
// version. A nil rules pointer never rejects.
//
// The function is pure: no state is read or written.
func rejectOperation(rules *RejectRules, version uint64) error {
	if rules == nil {
		return nil
	}
	if version == VersionNonexistent {
		// The version comparisons below are meaningless without an object;
		// only the existence rule applies.
		if rules.DoesntExist {
			return NewError(StatusObjectDoesntExist, version, "object does not exist")
		}
		return nil
	}
	if rules.Exists {
		return NewError(StatusObjectExists, version, "object exists")
	}
	if rules.VersionLeGiven && version <= rules.GivenVersion {
		return NewError(StatusWrongVersion, version, "version %d <= given %d", version, rules.GivenVersion)
	}
	if rules.VersionNeGiven && version != rules.GivenVersion {
		return NewError(StatusWrongVersion, version, "version %d != given %d", version, rules.GivenVersion)
	}
	return nil
}
