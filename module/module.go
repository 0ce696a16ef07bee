package module

// Module 一个独立的功能单元，由server按顺序加载
// OnInit 同步执行，Run 在独立协程里执行直到closeSig有信号
type Module interface {
	Name() string
	OnInit() error
	OnDestroy()
	Run(closeSig chan struct{})
}
