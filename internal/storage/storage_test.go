package storage

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// behavesLikeObjectStore runs the shared contract against any driver.
func behavesLikeObjectStore(newStore func() ObjectStore) {
	var (
		ctx   context.Context
		store ObjectStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
	})

	Describe("Put", func() {
		var (
			key         string
			contentType string
			obj         Object
			err         error
		)

		BeforeEach(func() {
			key = "expenses/p1/1700000000000_receipt.png"
			contentType = ""
		})

		JustBeforeEach(func() {
			obj, err = store.Put(ctx, key, contentType, pngHeader)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the path and a public URL", func() {
			Expect(obj.Path).To(Equal(key))
			Expect(obj.URL).To(Equal("http://files.test/files/" + key))
		})

		It("should sniff a missing content type", func() {
			Expect(obj.ContentType).To(Equal("image/png"))
		})

		When("the content type is declared", func() {
			BeforeEach(func() {
				contentType = "application/pdf"
			})

			It("should keep the declared type", func() {
				Expect(obj.ContentType).To(Equal("application/pdf"))
			})
		})

		When("the key tries to escape the root", func() {
			BeforeEach(func() {
				key = "../../etc/passwd"
			})

			It("should keep the object inside the store", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(obj.Path).To(Equal("etc/passwd"))
			})
		})
	})

	Describe("Get", func() {
		It("should return stored bytes", func() {
			_, err := store.Put(ctx, "a/b.png", "", pngHeader)
			Expect(err).NotTo(HaveOccurred())

			data, ct, err := store.Get(ctx, "a/b.png")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal(pngHeader))
			Expect(ct).To(Equal("image/png"))
		})

		It("should report missing objects", func() {
			_, _, err := store.Get(ctx, "missing.png")
			Expect(err).To(MatchError(ErrObjectNotFound))
		})
	})

	Describe("Delete", func() {
		It("should make the object inaccessible", func() {
			_, err := store.Put(ctx, "a/c.png", "", pngHeader)
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(ctx, "a/c.png")).To(Succeed())

			_, _, err = store.Get(ctx, "a/c.png")
			Expect(err).To(MatchError(ErrObjectNotFound))
		})

		It("should not fail for missing objects", func() {
			Expect(store.Delete(ctx, "never/stored.png")).To(Succeed())
		})
	})

	When("the context is cancelled", func() {
		It("should refuse to write", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := store.Put(cctx, "x.png", "", pngHeader)
			Expect(err).To(MatchError(context.Canceled))
		})
	})
}

var _ = Describe("LocalStore", func() {
	var tmpDir string

	behavesLikeObjectStore(func() ObjectStore {
		tmpDir = GinkgoT().TempDir()
		store, err := NewLocalStore(tmpDir, "http://files.test/")
		Expect(err).NotTo(HaveOccurred())
		return store
	})

	It("should write files under the base path", func() {
		store, err := NewLocalStore(tmpDir, "http://files.test")
		Expect(err).NotTo(HaveOccurred())
		_, err = store.Put(context.Background(), "expenses/p/1_a.png", "", pngHeader)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Join(tmpDir, "expenses", "p", "1_a.png")).To(BeAnExistingFile())
	})

	Describe("NewLocalStore", func() {
		It("should create a missing directory", func() {
			dir := filepath.Join(GinkgoT().TempDir(), "receipts")
			_, err := NewLocalStore(dir, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(BeADirectory())
		})
	})
})

var _ = Describe("BoltStore", func() {
	behavesLikeObjectStore(func() ObjectStore {
		store, err := NewBoltStore(filepath.Join(GinkgoT().TempDir(), "objects.db"), "http://files.test")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)
		return store
	})
})

var _ = Describe("Keys", func() {
	It("should namespace receipts by project and time", func() {
		at := time.UnixMilli(1700000000123)
		Expect(ReceiptKey("p1", "My Receipt.jpg", at)).To(Equal("expenses/p1/1700000000123_My_Receipt.jpg"))
	})

	DescribeTable("SanitizeName",
		func(in, want string) {
			Expect(SanitizeName(in)).To(Equal(want))
		},
		Entry("plain", "bill.pdf", "bill.pdf"),
		Entry("windows path", `C:\Users\me\bill.pdf`, "bill.pdf"),
		Entry("traversal", "../../secret.txt", "secret.txt"),
		Entry("empty", "", "receipt"),
		Entry("dots only", "..", "receipt"),
	)

	It("should reject empty keys", func() {
		_, err := CleanKey("/")
		Expect(err).To(HaveOccurred())
	})
})
