// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/labelhub/internal/auth"
)

var _ = AfterSuite(terminatePostgres)

type registration struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CompanyName string `json:"companyName,omitempty"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

var ada = registration{
	Email:       "Ada@Example.com",
	Password:    "password1",
	FirstName:   "Ada",
	LastName:    "Lovelace",
	CompanyName: "Analytical Engines",
}

func accountFlowSpecs(name string, open backendFactory) {
	Describe(name, Ordered, func() {
		var (
			ctx context.Context
			s   *stack
		)

		BeforeAll(func() {
			ctx = context.Background()
			s = startStack(ctx, open)
		})

		AfterAll(func() {
			s.close()
		})

		It("registers, logs in, reads the user and logs out", func() {
			c := s.newClient()

			resp := c.do(http.MethodPost, "/api/register", ada)
			Expect(resp.status).To(Equal(http.StatusCreated))
			Expect(resp.message()).To(Equal("User registered successfully"))

			resp = c.do(http.MethodGet, "/api/user", nil)
			Expect(resp.status).To(Equal(http.StatusUnauthorized))

			resp = c.do(http.MethodPost, "/api/login", credentials{Email: "ada@example.com", Password: "password1"})
			Expect(resp.status).To(Equal(http.StatusOK))
			Expect(resp.message()).To(Equal("Login successful"))

			resp = c.do(http.MethodGet, "/api/user", nil)
			Expect(resp.status).To(Equal(http.StatusOK))
			Expect(string(resp.body)).To(MatchJSON(`{
				"email": "ada@example.com",
				"firstName": "Ada",
				"lastName": "Lovelace",
				"companyName": "Analytical Engines"
			}`))

			resp = c.do(http.MethodGet, "/dashboard", nil)
			Expect(resp.status).To(Equal(http.StatusOK))
			Expect(resp.header.Get("Content-Type")).To(HavePrefix("text/html"))

			resp = c.do(http.MethodPost, "/api/logout", nil)
			Expect(resp.status).To(Equal(http.StatusOK))

			resp = c.do(http.MethodGet, "/dashboard", nil)
			Expect(resp.status).To(Equal(http.StatusUnauthorized))
			Expect(string(resp.body)).To(Equal("Please log in"))
		})

		It("rejects a second registration of the same email in any case", func() {
			c := s.newClient()
			dup := ada
			dup.Email = "ADA@EXAMPLE.COM"
			resp := c.do(http.MethodPost, "/api/register", dup)
			Expect(resp.status).To(Equal(http.StatusBadRequest))
			Expect(resp.message()).To(Equal("Email already exists"))
		})

		It("admits exactly one of many concurrent registrations", func() {
			const racers = 4
			var created, duplicate atomic.Int32
			var wg sync.WaitGroup
			for range racers {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					resp := s.newClient().do(http.MethodPost, "/api/register", registration{
						Email:     "race@example.com",
						Password:  "password1",
						FirstName: "Race",
						LastName:  "Condition",
					})
					switch resp.status {
					case http.StatusCreated:
						created.Add(1)
					case http.StatusBadRequest:
						duplicate.Add(1)
					}
				}()
			}
			wg.Wait()
			Expect(created.Load()).To(Equal(int32(1)))
			Expect(duplicate.Load()).To(Equal(int32(racers - 1)))
		})

		It("keeps sessions independent per browser", func() {
			first, second := s.newClient(), s.newClient()
			login := credentials{Email: "ada@example.com", Password: "password1"}
			Expect(first.do(http.MethodPost, "/api/login", login).status).To(Equal(http.StatusOK))
			Expect(second.do(http.MethodPost, "/api/login", login).status).To(Equal(http.StatusOK))

			Expect(first.do(http.MethodPost, "/api/logout", nil).status).To(Equal(http.StatusOK))
			Expect(first.do(http.MethodGet, "/api/user", nil).status).To(Equal(http.StatusUnauthorized))
			Expect(second.do(http.MethodGet, "/api/user", nil).status).To(Equal(http.StatusOK))
		})

		It("locks the account after repeated failures", func() {
			c := s.newClient()
			Expect(c.do(http.MethodPost, "/api/register", registration{
				Email:     "locked@example.com",
				Password:  "password1",
				FirstName: "Lock",
				LastName:  "Out",
			}).status).To(Equal(http.StatusCreated))

			wrong := credentials{Email: "locked@example.com", Password: "not-the-password"}
			for range auth.LockoutThreshold - 1 {
				resp := c.do(http.MethodPost, "/api/login", wrong)
				Expect(resp.status).To(Equal(http.StatusBadRequest))
				Expect(resp.message()).To(Equal("Invalid email or password"))
			}
			Expect(c.do(http.MethodPost, "/api/login", wrong).status).To(Equal(http.StatusTooManyRequests))

			resp := c.do(http.MethodPost, "/api/login", credentials{Email: "locked@example.com", Password: "password1"})
			Expect(resp.status).To(Equal(http.StatusTooManyRequests))
			Expect(resp.header.Get("Retry-After")).NotTo(BeEmpty())
		})

		It("purges expired sessions", func() {
			n, err := s.sessions.DeleteExpired(ctx, farFuture())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">=", 1))
		})
	})
}

var _ = Describe("Account flow", func() {
	accountFlowSpecs("on SQLite", sqliteBackend)
	accountFlowSpecs("on PostgreSQL", postgresBackend)
})
