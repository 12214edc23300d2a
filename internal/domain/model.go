package domain

import "time"

type Layer string

const (
	LayerStrategy    Layer = "strategy"
	LayerBusiness    Layer = "business"
	LayerApplication Layer = "application"
	LayerTechnology  Layer = "technology"
)

type ObjectType string

const (
	ObjectEnterprise         ObjectType = "Enterprise"
	ObjectProgramme          ObjectType = "Programme"
	ObjectProject            ObjectType = "Project"
	ObjectCapability         ObjectType = "Capability"
	ObjectBusinessUnit       ObjectType = "BusinessUnit"
	ObjectBusinessService    ObjectType = "BusinessService"
	ObjectBusinessProcess    ObjectType = "BusinessProcess"
	ObjectApplication        ObjectType = "Application"
	ObjectApplicationService ObjectType = "ApplicationService"
	ObjectDataObject         ObjectType = "DataObject"
	ObjectTechnology         ObjectType = "Technology"
	ObjectTechnologyService  ObjectType = "TechnologyService"
)

type RelationshipType string

const (
	RelOwns        RelationshipType = "OWNS"
	RelContains    RelationshipType = "CONTAINS"
	RelRealizedBy  RelationshipType = "REALIZED_BY"
	RelSupportedBy RelationshipType = "SUPPORTED_BY"
	RelDependsOn   RelationshipType = "DEPENDS_ON"
	RelHostedOn    RelationshipType = "HOSTED_ON"
	RelImpacts     RelationshipType = "IMPACTS"
	RelDelivers    RelationshipType = "DELIVERS"
	RelUses        RelationshipType = "USES"
)

// EaObject is one element of the architecture graph. Deleted is a soft-delete
// flag: relationships keep referencing deleted elements, readers filter them.
type EaObject struct {
	ID         string            `json:"id"`
	Type       ObjectType        `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Deleted    bool              `json:"deleted,omitempty"`
}

type EaRelationship struct {
	FromID     string            `json:"fromId"`
	ToID       string            `json:"toId"`
	Type       RelationshipType  `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type ArchitectureScope string

const (
	ScopeEnterprise   ArchitectureScope = "enterprise"
	ScopeBusinessUnit ArchitectureScope = "business-unit"
	ScopeDomain       ArchitectureScope = "domain"
	ScopeProgramme    ArchitectureScope = "programme"
)

type ReferenceFramework string

const (
	FrameworkNone      ReferenceFramework = "none"
	FrameworkArchiMate ReferenceFramework = "archimate"
	FrameworkTOGAF     ReferenceFramework = "togaf"
)

// GovernanceEnforcementMode drives how findings are surfaced to editors.
type GovernanceEnforcementMode string

const (
	EnforcementAdvisory GovernanceEnforcementMode = "advisory"
	EnforcementGuided   GovernanceEnforcementMode = "guided"
	EnforcementEnforced GovernanceEnforcementMode = "enforced"
)

// GovernanceMode controls save gating: strict blocks persistence while
// blocking debt is nonzero, advisory only warns.
type GovernanceMode string

const (
	GovernanceStrict   GovernanceMode = "strict"
	GovernanceAdvisory GovernanceMode = "advisory"
)

type LifecycleCoverage string

const (
	CoverageBaseline LifecycleCoverage = "baseline"
	CoverageTarget   LifecycleCoverage = "target"
	CoverageBoth     LifecycleCoverage = "both"
)

const (
	LifecycleAttributeKey = "lifecycle"
	LifecycleBaseline     = "baseline"
	LifecycleTarget       = "target"
	DomainIDAttributeKey  = "domainId"
	HiddenAttributeKey    = "hiddenFromDiagrams"
)

// Metadata is the per-project repository configuration. It is immutable after
// project creation except via explicit wholesale replace.
type Metadata struct {
	ProjectID         string                    `json:"projectId"`
	Name              string                    `json:"name"`
	Scope             ArchitectureScope         `json:"architectureScope"`
	Framework         ReferenceFramework        `json:"referenceFramework"`
	EnforcementMode   GovernanceEnforcementMode `json:"governanceEnforcementMode"`
	GovernanceMode    GovernanceMode            `json:"governanceMode"`
	LifecycleCoverage LifecycleCoverage         `json:"lifecycleCoverage"`
	TimeHorizon       string                    `json:"timeHorizon,omitempty"`
	CreatedAt         time.Time                 `json:"createdAt"`
}

type User struct {
	ID           uint
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type APIToken struct {
	ID        uint
	UserID    uint
	Name      string
	TokenHash string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type Role struct {
	ID        uint
	Key       string
	Name      string
	CreatedAt time.Time
}

type Identity struct {
	User        User
	Permissions map[string]struct{}
}

type AuditLog struct {
	ActorUserID *uint
	Action      string
	TargetType  string
	TargetID    string
	Metadata    string
}

type AuditRecord struct {
	ID             uint
	ActorUserID    *uint
	ActorUserEmail string
	Action         string
	TargetType     string
	TargetID       string
	Metadata       string
	CreatedAt      time.Time
}
