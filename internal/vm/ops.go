package vm

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/jdwpctl/internal/protocol/codec"
	"github.com/danmuck/jdwpctl/internal/protocol/commands"
)

func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	r, err := c.call(ctx, commands.Version, nil)
	if err != nil {
		return VersionInfo{}, err
	}
	v := VersionInfo{
		Description: r.str(),
		JDWPMajor:   r.i32(),
		JDWPMinor:   r.i32(),
		VMVersion:   r.str(),
		VMName:      r.str(),
	}
	return v, r.done()
}

// AllClasses lists every loaded reference type.
func (c *Client) AllClasses(ctx context.Context) ([]ClassInfo, error) {
	return c.classes(ctx, commands.AllClasses, false)
}

// AllClassesWithGeneric is AllClasses plus generic signatures.
func (c *Client) AllClassesWithGeneric(ctx context.Context) ([]ClassInfo, error) {
	return c.classes(ctx, commands.AllClassesWithGeneric, true)
}

func (c *Client) classes(ctx context.Context, name string, generic bool) ([]ClassInfo, error) {
	r, err := c.call(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	n, capHint := r.count(1 + 4 + 4 + 4)
	out := make([]ClassInfo, 0, capHint)
	for i := 0; i < n && r.err == nil; i++ {
		info := ClassInfo{
			RefTypeTag: TypeTag(r.u8()),
			TypeID:     r.id(codec.KindReferenceTypeID),
			Signature:  r.str(),
		}
		if generic {
			info.GenericSignature = r.str()
		}
		info.Status = ClassStatus(r.i32())
		out = append(out, info)
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return out, nil
}

// ClassesBySignature finds the loaded types matching a JNI signature such
// as "Ljava/lang/String;".
func (c *Client) ClassesBySignature(ctx context.Context, signature string) ([]ClassInfo, error) {
	body, err := codec.PackString(signature)
	if err != nil {
		return nil, err
	}
	r, err := c.call(ctx, commands.ClassesBySignature, body)
	if err != nil {
		return nil, err
	}
	n, capHint := r.count(1 + 4)
	out := make([]ClassInfo, 0, capHint)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, ClassInfo{
			RefTypeTag: TypeTag(r.u8()),
			TypeID:     r.id(codec.KindReferenceTypeID),
			Signature:  signature,
			Status:     ClassStatus(r.i32()),
		})
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadedClassNames returns the sorted, de-duplicated top-level class names
// of every loaded type. Nested classes and arrays fold into their outer
// class.
func (c *Client) LoadedClassNames(ctx context.Context) ([]string, error) {
	classes, err := c.AllClasses(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(classes))
	for _, cls := range classes {
		name := OuterClassName(cls.Signature)
		if name == "" {
			continue
		}
		seen[name] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) AllThreads(ctx context.Context) ([]uint64, error) {
	return c.ids(ctx, commands.AllThreads, codec.KindThreadID)
}

func (c *Client) TopLevelThreadGroups(ctx context.Context) ([]uint64, error) {
	return c.ids(ctx, commands.TopLevelThreadGroups, codec.KindThreadGroupID)
}

func (c *Client) ids(ctx context.Context, name string, kind codec.Kind) ([]uint64, error) {
	r, err := c.call(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	n, capHint := r.count(1)
	out := make([]uint64, 0, capHint)
	for i := 0; i < n && r.err == nil; i++ {
		out = append(out, r.id(kind))
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Suspend(ctx context.Context) error {
	return c.empty(ctx, commands.Suspend, nil)
}

func (c *Client) Resume(ctx context.Context) error {
	return c.empty(ctx, commands.Resume, nil)
}

func (c *Client) HoldEvents(ctx context.Context) error {
	return c.empty(ctx, commands.HoldEvents, nil)
}

func (c *Client) ReleaseEvents(ctx context.Context) error {
	return c.empty(ctx, commands.ReleaseEvents, nil)
}

// Dispose ends the debugging session and closes the connection. The VM
// keeps running.
func (c *Client) Dispose(ctx context.Context) error {
	err := c.empty(ctx, commands.Dispose, nil)
	if cerr := c.Close(); cerr != nil {
		log.Debug().Err(cerr).Str("addr", c.Address()).Msg("jdwp close after dispose")
	}
	return err
}

// Exit terminates the target VM with code and closes the connection.
func (c *Client) Exit(ctx context.Context, code int32) error {
	err := c.empty(ctx, commands.Exit, codec.PackInt32(code))
	if cerr := c.Close(); cerr != nil {
		log.Debug().Err(cerr).Str("addr", c.Address()).Msg("jdwp close after exit")
	}
	return err
}

// CreateString makes a string object in the target VM and returns its ID.
func (c *Client) CreateString(ctx context.Context, s string) (uint64, error) {
	body, err := codec.PackString(s)
	if err != nil {
		return 0, err
	}
	r, err := c.call(ctx, commands.CreateString, body)
	if err != nil {
		return 0, err
	}
	id := r.id(codec.KindStringID)
	return id, r.done()
}

func (c *Client) SetDefaultStratum(ctx context.Context, stratum string) error {
	body, err := codec.PackString(stratum)
	if err != nil {
		return err
	}
	return c.empty(ctx, commands.SetDefaultStratum, body)
}

func (c *Client) Capabilities(ctx context.Context) (Capabilities, error) {
	r, err := c.call(ctx, commands.Capabilities, nil)
	if err != nil {
		return nil, err
	}
	out := make(Capabilities, 0, len(capabilityNames))
	for _, name := range capabilityNames {
		out = append(out, Capability{Name: name, Enabled: r.flag()})
	}
	return out, r.done()
}

func (c *Client) CapabilitiesNew(ctx context.Context) (Capabilities, error) {
	r, err := c.call(ctx, commands.CapabilitiesNew, nil)
	if err != nil {
		return nil, err
	}
	out := make(Capabilities, 0, capabilitiesNewFlags)
	for i := 0; i < capabilitiesNewFlags; i++ {
		name := fmt.Sprintf("reserved%d", i+1)
		if i < len(capabilityNewNames) {
			name = capabilityNewNames[i]
		}
		out = append(out, Capability{Name: name, Enabled: r.flag()})
	}
	return out, r.done()
}

func (c *Client) ClassPaths(ctx context.Context) (ClassPathInfo, error) {
	r, err := c.call(ctx, commands.ClassPaths, nil)
	if err != nil {
		return ClassPathInfo{}, err
	}
	info := ClassPathInfo{BaseDir: r.str()}
	info.ClassPaths = r.strings()
	info.BootClassPaths = r.strings()
	if err := r.done(); err != nil {
		return ClassPathInfo{}, err
	}
	return info, nil
}

func (c *Client) empty(ctx context.Context, name string, payload []byte) error {
	r, err := c.call(ctx, name, payload)
	if err != nil {
		return err
	}
	return r.done()
}
