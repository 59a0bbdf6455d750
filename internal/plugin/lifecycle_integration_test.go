// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

//go:build integration

package plugin_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gradyzhuo/plank/internal/plugin"
	pluginlua "github.com/gradyzhuo/plank/internal/plugin/lua"
)

const counterScript = `
function plugin_did_install(p)
  plank.set("hooks", "install")
end

function plugin_did_load(p)
  plank.set("hooks", plank.get("hooks") .. ",load")
end

function plugin_did_unload(p)
  plank.set("hooks", plank.get("hooks") .. ",unload")
end
`

var _ = Describe("Lua plugin lifecycle", func() {
	var (
		ctx     context.Context
		root    string
		manager *plugin.Manager
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()

		dir := filepath.Join(root, "plank-counter")
		Expect(os.MkdirAll(dir, 0o750)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, plugin.ManifestFile),
			[]byte("name: counter\nversion: 1.0.0\ndelegate: lua:main.lua\n"), 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "main.lua"), []byte(counterScript), 0o600)).To(Succeed())

		manager = plugin.NewManager(
			plugin.WithWorkingDir(root),
			plugin.WithScriptHost(pluginlua.NewHost()),
			plugin.WithDataDir(func(name string) string { return filepath.Join(root, ".data", name) }),
		)
	})

	It("runs every hook in order", func() {
		plugins, err := manager.Discover(ctx, "plank-")
		Expect(err).NotTo(HaveOccurred())
		Expect(plugins).To(HaveLen(1))
		p := plugins[0]

		Expect(manager.Install(ctx, p)).To(Succeed())
		Expect(manager.Load(ctx, p)).To(Succeed())
		Expect(manager.Close(ctx)).To(Succeed())

		Expect(p.State()).To(Equal(plugin.StateUnloaded))
		Expect(p.Store().Get("hooks")).To(Equal("install,load,unload"))
	})

	It("finds the installed plugin by package", func() {
		plugins, err := manager.Discover(ctx, "plank-")
		Expect(err).NotTo(HaveOccurred())
		Expect(manager.Install(ctx, plugins[0])).To(Succeed())

		found, err := manager.Lookup("plank-counter")
		Expect(err).NotTo(HaveOccurred())
		Expect(found.Name()).To(Equal("counter"))
	})
})
