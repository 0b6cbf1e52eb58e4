// ABOUTME: Input data model for Common Standards Project documents
// ABOUTME: Standard nodes, standard sets (trees) and jurisdiction metadata

package standards

// Node is one standard in a standard set. Required scalar fields are
// pointers so an absent member can be told apart from a zero value.
type Node struct {
	ID                string   `json:"id"`
	ASNIdentifier     string   `json:"asnIdentifier,omitempty"`
	Position          *int     `json:"position,omitempty"`
	Depth             *int     `json:"depth,omitempty"`
	StatementNotation string   `json:"statementNotation,omitempty"`
	Description       *string  `json:"description,omitempty"`
	AncestorIDs       []string `json:"ancestorIds,omitempty"` // as supplied upstream, never trusted
	ParentID          *string  `json:"parentId"`
	StatementLabel    string   `json:"statementLabel,omitempty"`
	EducationLevels   []string `json:"educationLevels,omitempty"`

	Extra Extra `json:"-"`
}

// Missing lists the required scalar fields absent from the node.
func (n *Node) Missing() []string {
	var missing []string
	if n.ID == "" {
		missing = append(missing, "id")
	}
	if n.Position == nil {
		missing = append(missing, "position")
	}
	if n.Depth == nil {
		missing = append(missing, "depth")
	}
	if n.Description == nil {
		missing = append(missing, "description")
	}
	return missing
}

// IsRoot reports whether the node has no parent reference.
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// Parent returns the parent id, or "" for a root.
func (n *Node) Parent() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// PositionValue returns the sibling ordering key, 0 when absent.
func (n *Node) PositionValue() int {
	if n.Position == nil {
		return 0
	}
	return *n.Position
}

// DepthValue returns the depth, 0 when absent.
func (n *Node) DepthValue() int {
	if n.Depth == nil {
		return 0
	}
	return *n.Depth
}

// Text returns the description, "" when absent.
func (n *Node) Text() string {
	if n.Description == nil {
		return ""
	}
	return *n.Description
}

type nodeFields Node

func (n *Node) UnmarshalJSON(data []byte) error {
	var f nodeFields
	extra, err := decodeWithExtra(data, &f)
	if err != nil {
		return err
	}
	*n = Node(f)
	n.Extra = extra
	if n.EducationLevels != nil {
		n.EducationLevels = NormalizeEducationLevels(n.EducationLevels)
	}
	return nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(nodeFields(n), n.Extra)
}

// Document describes the publication a standard set belongs to.
type Document struct {
	ID                string `json:"id,omitempty"`
	Title             string `json:"title"`
	Valid             string `json:"valid,omitempty"` // year as string
	SourceURL         string `json:"sourceURL,omitempty"`
	ASNIdentifier     string `json:"asnIdentifier,omitempty"`
	PublicationStatus string `json:"publicationStatus,omitempty"`

	Extra Extra `json:"-"`
}

type documentFields Document

func (d *Document) UnmarshalJSON(data []byte) error {
	var f documentFields
	extra, err := decodeWithExtra(data, &f)
	if err != nil {
		return err
	}
	*d = Document(f)
	d.Extra = extra
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(documentFields(d), d.Extra)
}

// License carries the rights statement of a standard set.
type License struct {
	Title        string `json:"title"`
	URL          string `json:"URL"`
	RightsHolder string `json:"rightsHolder"`
}

// JurisdictionRef is the short jurisdiction reference embedded in a set.
type JurisdictionRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Tree is a standard set: the node mapping plus metadata shared by every node.
type Tree struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Subject           string          `json:"subject"`
	NormalizedSubject string          `json:"normalizedSubject,omitempty"`
	EducationLevels   []string        `json:"educationLevels"`
	License           License         `json:"license"`
	Document          Document        `json:"document"`
	Jurisdiction      JurisdictionRef `json:"jurisdiction"`
	Standards         NodeSet         `json:"standards"`
	CSPStatus         map[string]any  `json:"cspStatus,omitempty"`

	Extra Extra `json:"-"`
}

type treeFields Tree

func (t *Tree) UnmarshalJSON(data []byte) error {
	var f treeFields
	extra, err := decodeWithExtra(data, &f)
	if err != nil {
		return err
	}
	*t = Tree(f)
	t.Extra = extra
	t.EducationLevels = NormalizeEducationLevels(t.EducationLevels)
	return nil
}

func (t Tree) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(treeFields(t), t.Extra)
}

// Jurisdiction is an entry of the jurisdiction list.
type Jurisdiction struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"` // school, organization, state, nation

	Extra Extra `json:"-"`
}

type jurisdictionFields Jurisdiction

func (j *Jurisdiction) UnmarshalJSON(data []byte) error {
	var f jurisdictionFields
	extra, err := decodeWithExtra(data, &f)
	if err != nil {
		return err
	}
	*j = Jurisdiction(f)
	j.Extra = extra
	return nil
}

func (j Jurisdiction) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(jurisdictionFields(j), j.Extra)
}

// StandardSetReference is the summary of a set listed under a jurisdiction.
type StandardSetReference struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Subject         string   `json:"subject"`
	EducationLevels []string `json:"educationLevels"`
	Document        Document `json:"document"`

	Extra Extra `json:"-"`
}

type setReferenceFields StandardSetReference

func (s *StandardSetReference) UnmarshalJSON(data []byte) error {
	var f setReferenceFields
	extra, err := decodeWithExtra(data, &f)
	if err != nil {
		return err
	}
	*s = StandardSetReference(f)
	s.Extra = extra
	s.EducationLevels = NormalizeEducationLevels(s.EducationLevels)
	return nil
}

func (s StandardSetReference) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(setReferenceFields(s), s.Extra)
}

// JurisdictionDetails is a jurisdiction with its standard set references.
type JurisdictionDetails struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	Type         string                 `json:"type"`
	StandardSets []StandardSetReference `json:"standardSets"`

	Extra Extra `json:"-"`
}

type detailsFields JurisdictionDetails

func (d *JurisdictionDetails) UnmarshalJSON(data []byte) error {
	var f detailsFields
	extra, err := decodeWithExtra(data, &f)
	if err != nil {
		return err
	}
	*d = JurisdictionDetails(f)
	d.Extra = extra
	return nil
}

func (d JurisdictionDetails) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(detailsFields(d), d.Extra)
}

// Envelope is the {"data": ...} wrapper every API response uses.
type Envelope[T any] struct {
	Data T `json:"data"`
}
