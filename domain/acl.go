package domain

// Perm is a 3-bit permission mask.
type Perm int

const (
	PermNone    Perm = 0
	PermExecute Perm = 1
	PermWrite   Perm = 2
	PermRead    Perm = 4
	PermRW           = PermRead | PermWrite
	PermRX           = PermRead | PermExecute
	PermRWX          = PermRead | PermWrite | PermExecute
)

// Subject is an ACL principal class.
type Subject string

const (
	SubjectOwner  Subject = "owner"
	SubjectUser   Subject = "user"
	SubjectGroup  Subject = "group"
	SubjectPublic Subject = "public"
)

// Perm returns the mask stored for subject; PermNone when absent.
func (e *Entity) Perm(subject Subject) Perm {
	n, ok := toInt64(e.GetMap(FieldACL)[string(subject)])
	if !ok {
		return PermNone
	}
	return Perm(n) & PermRWX
}

// SetPerm replaces the mask for subject.
func (e *Entity) SetPerm(subject Subject, perm Perm) bool {
	acl := make(map[string]any)
	for k, v := range e.GetMap(FieldACL) {
		acl[k] = v
	}
	acl[string(subject)] = int64(perm & PermRWX)
	return e.Set(FieldACL, acl)
}

// GrantPerm adds bits to subject's mask.
func (e *Entity) GrantPerm(subject Subject, perm Perm) bool {
	return e.SetPerm(subject, e.Perm(subject)|perm)
}

// RevokePerm clears bits from subject's mask.
func (e *Entity) RevokePerm(subject Subject, perm Perm) bool {
	return e.SetPerm(subject, e.Perm(subject)&^perm)
}

// CheckPerm tests subject's mask. Checking PermNone succeeds only when no bit is set;
// any other value succeeds when at least one of its bits is set.
func (e *Entity) CheckPerm(subject Subject, perm Perm) bool {
	mask := e.Perm(subject)
	if perm == PermNone {
		return mask == PermNone
	}
	return mask&perm != 0
}

// HasAllPerms succeeds when every bit of perm is set for subject.
func (e *Entity) HasAllPerms(subject Subject, perm Perm) bool {
	return e.Perm(subject)&perm == perm
}

// IsVisibleTo reports whether userID may read e. Owners always can; otherwise the
// visibility scope decides, with private and group scopes consulting the user and
// group read bits.
func (e *Entity) IsVisibleTo(userID string) bool {
	if userID != "" && userID == e.OwnerID() {
		return true
	}
	switch e.Visibility() {
	case "", VisibilityPublic:
		return true
	case VisibilityPrivate:
		return userID != "" && e.CheckPerm(SubjectUser, PermRead)
	case VisibilityGroup:
		return userID != "" && e.CheckPerm(SubjectGroup, PermRead)
	default:
		return false
	}
}

// IsWritableBy reports whether userID may modify e: the owner, or any signed-in user
// when the user class holds the write bit.
func (e *Entity) IsWritableBy(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == e.OwnerID() || e.CheckPerm(SubjectUser, PermWrite)
}
