// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gradyzhuo/plank/internal/app"
	"github.com/gradyzhuo/plank/internal/config"
	"github.com/gradyzhuo/plank/internal/plugin"
	"github.com/gradyzhuo/plank/internal/server"
	"github.com/gradyzhuo/plank/internal/service"
)

const document = `
[app]
name = "calc"
version = "1.2.0"

[plugin]
prefix = "plank-"

[path]
workspace = "%[1]s"
plugin = "${path.workspace}/data/${PLUGIN}"

[service.math.remote]
scheme = "inline"
host = "local"
port = 7000
path = "v1/math/double"

[program.dev.service.math.remote]
path = "v1/math/triple"
`

const greeterScript = `
function plugin_did_load(p)
  plank.set("loaded_at", p.data_dir)
end
`

// mathDelegate contributes the math service when loaded.
type mathDelegate struct {
	plugin.BaseDelegate
}

func (mathDelegate) PluginDidLoad(_ context.Context, p *plugin.Plugin) error {
	svc := service.New("math", service.WithServingPath("v1/math"))
	for name, factor := range map[string]int{"double": 2, "triple": 3} {
		factor := factor
		a, err := svc.Handle(name, func(x int) int { return x * factor }, service.Params("x"))
		if err != nil {
			return err
		}
		a.BindProtocol(server.InlineScheme, server.NewInlineHelper)
	}
	p.AddService(svc)
	return nil
}

func writePlugin(root, dir, manifest string, files map[string]string) {
	path := filepath.Join(root, dir)
	Expect(os.MkdirAll(path, 0o750)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(path, plugin.ManifestFile), []byte(manifest), 0o600)).To(Succeed())
	for name, content := range files {
		Expect(os.WriteFile(filepath.Join(path, name), []byte(content), 0o600)).To(Succeed())
	}
}

var _ = Describe("Application composition", func() {
	var (
		ctx     context.Context
		root    string
		docPath string
		rt      *app.Runtime
	)

	noEnv := func(string) (string, bool) { return "", false }

	launch := func(program string) *app.Application {
		pool, err := rt.LoadPool(docPath, config.WithEnv(noEnv))
		Expect(err).NotTo(HaveOccurred())
		cfg, err := pool.Get(program)
		Expect(err).NotTo(HaveOccurred())

		a := app.New(rt, cfg, nil, app.WithPluginOptions(plugin.WithWorkingDir(root)))
		Expect(a.Launch(ctx, map[string]any{"mode": "it"})).To(Succeed())
		DeferCleanup(func() { Expect(a.Unload(context.Background())).To(Succeed()) })
		return a
	}

	serve := func(a *app.Application) {
		svc, err := a.Services().Get("math.math")
		Expect(err).NotTo(HaveOccurred())
		s := a.NewServer()
		s.Mount(svc, server.InlineScheme)
		rt.Listeners.Listen(s, server.BindAddress{Host: "local", Port: 7000})
		Expect(s.DidStartup(ctx)).To(Succeed())
	}

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		docPath = filepath.Join(root, "plank.toml")
		Expect(os.WriteFile(docPath, []byte(fmt.Sprintf(document, filepath.ToSlash(root))), 0o600)).To(Succeed())

		writePlugin(root, "plank-math", "name: math\nversion: 1.0.0\ndelegate: go:math\nrequires: \"^1.0.0\"\n", nil)
		writePlugin(root, "plank-greeter", "name: greeter\nversion: 0.1.0\ndelegate: lua:main.lua\n",
			map[string]string{"main.lua": greeterScript})

		rt = app.NewRuntime(app.WithEnv(noEnv))
		rt.Delegates.Register("go:math", func(*plugin.Plugin) (plugin.Delegate, error) { return mathDelegate{}, nil })
	})

	It("loads Go and Lua plugins", func() {
		a := launch(config.BaseProgram)

		Expect(a.Loaded()).To(BeTrue())
		Expect(a.Plugins()).To(HaveLen(2))
		for _, p := range a.Plugins() {
			Expect(p.State()).To(Equal(plugin.StateLoaded))
		}

		greeter, err := a.Plugin("greeter")
		Expect(err).NotTo(HaveOccurred())
		Expect(greeter.Store().Get("loaded_at")).To(Equal(filepath.Join(root, "data", "greeter")))
	})

	It("dispatches to the configured remote over inline", func() {
		a := launch(config.BaseProgram)
		serve(a)

		conn, err := a.Connect("math")
		Expect(err).NotTo(HaveOccurred())
		resp, err := conn.Send(ctx, service.NewRequest(map[string]any{"x": 21}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Value).To(Equal(42))
	})

	It("applies program overrides to the remote", func() {
		a := launch("dev")
		serve(a)

		conn, err := a.Connect("math")
		Expect(err).NotTo(HaveOccurred())
		resp, err := conn.Send(ctx, service.NewRequest(map[string]any{"x": 5}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Value).To(Equal(15))
	})

	It("waits for a server that starts late", func() {
		rt = app.NewRuntime(app.WithEnv(noEnv), app.WithInlineOptions(server.WithRetry(10*time.Millisecond, 50)))
		rt.Delegates.Register("go:math", func(*plugin.Plugin) (plugin.Delegate, error) { return mathDelegate{}, nil })
		a := launch(config.BaseProgram)

		conn, err := a.Connect("math")
		Expect(err).NotTo(HaveOccurred())

		done := make(chan server.Result, 1)
		go func() {
			resp, err := conn.Send(ctx, service.NewRequest(map[string]any{"x": 1}))
			done <- server.Result{Response: resp, Err: err}
		}()

		time.Sleep(30 * time.Millisecond)
		serve(a)

		var res server.Result
		Eventually(done).WithTimeout(2 * time.Second).Should(Receive(&res))
		Expect(res.Err).NotTo(HaveOccurred())
		Expect(res.Response.Value).To(Equal(2))
	})

	It("reloads the default configuration when the document changes", func() {
		launch(config.BaseProgram)

		watchCtx, cancel := context.WithCancel(ctx)
		DeferCleanup(cancel)
		changed := make(chan *config.Configuration, 4)
		rt.Config.OnChange(func(c *config.Configuration) {
			select {
			case changed <- c:
			default:
			}
		})
		go func() {
			defer GinkgoRecover()
			Expect(rt.Config.Watch(watchCtx, docPath, config.BaseProgram, rt.BuildOptions(config.WithEnv(noEnv))...)).To(Succeed())
		}()

		// Give the watcher time to subscribe before writing.
		time.Sleep(100 * time.Millisecond)
		updated := fmt.Sprintf(document, filepath.ToSlash(root)) + "\n[logger]\nlevel = \"debug\"\n"
		Expect(os.WriteFile(docPath, []byte(updated), 0o600)).To(Succeed())

		var c *config.Configuration
		Eventually(changed).WithTimeout(2 * time.Second).Should(Receive(&c))
		Expect(c.Logger().Level()).To(Equal("debug"))
	})
})
